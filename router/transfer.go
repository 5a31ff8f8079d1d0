package router

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/astra/tool"
)

// TransferToolName is the name of the tool returned by TransferTool.
const TransferToolName = "transfer_to_agent"

type slotKey struct{}

// Slot holds the transfer requested during one agent execution.
type Slot struct {
	mu      sync.Mutex
	handOff *HandOff
}

// Take returns and clears the pending handoff.
func (s *Slot) Take() *HandOff {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handOff
	s.handOff = nil
	return h
}

func (s *Slot) set(h HandOff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handOff = &h
}

// WithSlot returns a context in which TransferTool records its requests.
func WithSlot(ctx context.Context) (context.Context, *Slot) {
	s := &Slot{}
	return context.WithValue(ctx, slotKey{}, s), s
}

type transferArgs struct {
	Agent  string `json:"agent" jsonschema:"description=Target agent name"`
	Reason string `json:"reason,omitempty" jsonschema:"description=Why the other agent is better suited"`
}

// TransferTool lets a model request a handoff to another agent by name. The
// request is stored in the Slot of the calling context.
func TransferTool() tool.Tool {
	return tool.NewTyped(TransferToolName,
		"Request transfer of control to another agent by name. Use when another agent is better suited.",
		func(ctx context.Context, in transferArgs) (any, error) {
			if in.Agent == "" {
				return nil, errors.New("field 'agent' must be non-empty string")
			}
			s, ok := ctx.Value(slotKey{}).(*Slot)
			if !ok {
				return nil, errors.New("transfer is not available in this context")
			}
			s.set(HandOff{ToAgent: in.Agent, Reason: in.Reason})
			return map[string]any{"transferred": true, "agent": in.Agent}, nil
		})
}
