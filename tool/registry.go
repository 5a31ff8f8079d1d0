package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Registry is an ordered, name-unique set of tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry returns a registry holding tools. Later tools with a duplicate
// name replace earlier ones while keeping the original position.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
	return r
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Schemas returns the declaration of every tool in registration order.
func (r *Registry) Schemas() []map[string]any {
	tools := r.Tools()
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, Schema(t))
	}
	return out
}

// Merge returns a new registry containing the tools of r followed by those of
// other. Tools in other win on name conflicts.
func (r *Registry) Merge(other *Registry) *Registry {
	merged := NewRegistry(r.Tools()...)
	for _, t := range other.Tools() {
		merged.Register(t)
	}
	return merged
}

// Call looks up name and invokes it with arguments decoded from rawArgs. An
// empty rawArgs means no arguments.
func (r *Registry) Call(ctx context.Context, name, rawArgs string) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("tool %q is not registered", name),
			Code:    CodeNotFound,
		}
	}

	args := map[string]any{}
	if s := strings.TrimSpace(rawArgs); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("arguments are not a JSON object: %v", err),
				Code:    CodeValidation,
			}
		}
	}
	return t.Call(ctx, args)
}
