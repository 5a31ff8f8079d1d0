package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/google/shlex"

	"github.com/hupe1980/astra/tool"
)

type pythonArgs struct {
	Code string `json:"code" jsonschema:"description=Python source to run"`
}

// PythonREPL runs code with `<interpreter> -c <code>`. interpreter is a
// command line such as "python3" or "uv run python"; empty means python3.
func PythonREPL(interpreter string) tool.Tool {
	return tool.NewTyped(PythonREPLName, "Execute Python code in a separate interpreter process.", func(ctx context.Context, in pythonArgs) (any, error) {
		argv, err := pythonCommand(interpreter, in.Code)
		if err != nil {
			return fmt.Sprintf("Error: %v\n", err), nil
		}

		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		c.Stdout = &stdout
		c.Stderr = &stderr

		if err := c.Run(); err != nil {
			msg := stderr.String()
			if msg == "" {
				msg = err.Error()
			}
			return fmt.Sprintf("Error: %s\n%s", msg, stdout.String()), nil
		}
		return stdout.String(), nil
	})
}

func pythonCommand(interpreter, code string) ([]string, error) {
	if interpreter == "" {
		interpreter = "python3"
	}
	argv, err := shlex.Split(interpreter)
	if err != nil {
		return nil, fmt.Errorf("parsing interpreter %q: %w", interpreter, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty interpreter command")
	}
	return append(argv, "-c", code), nil
}
