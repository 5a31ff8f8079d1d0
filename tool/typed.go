package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// NewTyped builds a tool whose arguments are decoded into T. The parameter
// schema is reflected from T: fields without omitempty are required and a
// `jsonschema:"description=..."` tag documents a field.
//
//	type addArgs struct {
//	  A float64 `json:"a" jsonschema:"description=First addend"`
//	  B float64 `json:"b"`
//	}
//	add := NewTyped("add", "Add two numbers", func(ctx context.Context, in addArgs) (any, error) {
//	  return in.A + in.B, nil
//	})
func NewTyped[T any](name, description string, fn func(ctx context.Context, in T) (any, error)) *FunctionTool {
	return NewFunctionTool(name, description, ReflectSchema[T](), func(ctx context.Context, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation}
		}
		var in T
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, &ToolError{Tool: name, Message: fmt.Sprintf("decoding arguments: %v", err), Code: CodeValidation}
		}
		return fn(ctx, in)
	})
}

// ReflectSchema returns the JSON schema of T as a plain map.
func ReflectSchema[T any]() map[string]any {
	r := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var zero T
	s := r.Reflect(&zero)

	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
