package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/astra/tool"
)

var directiveRe = regexp.MustCompile("```tool\\s*\\n([\\s\\S]*?)```")

// Directive is a tool invocation requested by the model.
type Directive struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseDirectives extracts every well-formed ```tool block from reply in
// order. Blocks that are not JSON objects with a name are ignored.
func ParseDirectives(reply string) []Directive {
	var out []Directive
	for _, m := range directiveRe.FindAllStringSubmatch(reply, -1) {
		var d Directive
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &d); err != nil || d.Name == "" {
			continue
		}
		if d.Arguments == nil {
			d.Arguments = map[string]any{}
		}
		out = append(out, d)
	}
	return out
}

// FormatResult renders a tool result as message content: strings verbatim,
// everything else as JSON.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprint(r)
		}
		return string(b)
	}
}

func toolProtocol(tools *tool.Registry) string {
	var b strings.Builder
	b.WriteString("\n\nTo use a tool, reply with one or more fenced blocks of the form:\n")
	b.WriteString("```tool\n{\"name\": \"<tool name>\", \"arguments\": {...}}\n```\n")
	b.WriteString("Tool results are sent back to you. Answer without tool blocks when you are done.\n")
	b.WriteString("Tools:")
	for _, t := range tools.Tools() {
		params, _ := json.Marshal(t.Parameters())
		fmt.Fprintf(&b, "\n- %s: %s Parameters: %s", t.Name(), t.Description(), params)
	}
	return b.String()
}
