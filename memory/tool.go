package memory

import (
	"context"
	"fmt"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/tool"
)

// ToolName is the name of the tool returned by NewTool.
const ToolName = "memory"

type toolArgs struct {
	Operation string `json:"operation" jsonschema:"enum=search,enum=store,description=The memory operation to perform"`
	Query     string `json:"query,omitempty" jsonschema:"description=Substring to search for (search)"`
	Content   string `json:"content,omitempty" jsonschema:"description=Note to remember (store)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"description=Maximum results for search (default: 10)"`
}

type entry struct {
	Role    core.Role `json:"role"`
	Content string    `json:"content"`
}

// NewTool exposes m to a model: "search" finds earlier messages by substring
// and "store" saves a note for later turns.
func NewTool(m *ShortTermMemory) tool.Tool {
	return tool.NewTyped(ToolName,
		"Search or extend the agent's short-term memory. Operations: search, store.",
		func(_ context.Context, in toolArgs) (any, error) {
			switch in.Operation {
			case "search":
				limit := in.Limit
				if limit <= 0 {
					limit = 10
				}
				found := m.Search(in.Query, limit)
				results := make([]entry, len(found))
				for i, msg := range found {
					results[i] = entry{Role: msg.Role, Content: msg.Content}
				}
				return map[string]any{
					"query":   in.Query,
					"count":   len(results),
					"results": results,
				}, nil
			case "store":
				if in.Content == "" {
					return nil, tool.NewToolError(ToolName, "content parameter is required for store operation", tool.CodeValidation)
				}
				note := core.AssistantMessage(in.Content)
				note.Meta = map[string]any{"source": ToolName}
				m.Add(note)
				return map[string]any{"success": true, "size": m.Len()}, nil
			default:
				return nil, tool.NewToolError(ToolName, fmt.Sprintf("unknown operation: %s", in.Operation), tool.CodeValidation)
			}
		})
}
