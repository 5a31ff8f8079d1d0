package builtin

import (
	"context"
	"fmt"

	"github.com/google/renameio/v2"

	"github.com/hupe1980/astra/tool"
)

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Destination file path"`
	Content string `json:"content" jsonschema:"description=Text to write"`
}

// WriteFile atomically replaces a file with the given text.
func WriteFile() tool.Tool {
	return tool.NewTyped(WriteFileName, "Write text content to a file on disk.", func(_ context.Context, in writeFileArgs) (any, error) {
		if err := renameio.WriteFile(in.Path, []byte(in.Content), 0o644); err != nil {
			return fmt.Sprintf("Error writing file: %v", err), nil
		}
		return fmt.Sprintf("File written: %s", in.Path), nil
	})
}
