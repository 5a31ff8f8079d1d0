package model

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/astra/core"
)

// ErrUnknownProvider is returned when a configuration names a provider that
// has no backend.
var ErrUnknownProvider = errors.New("unknown provider")

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "ollama", "openai", "gemini", "anthropic", "mock"
}

// Model is the minimal interface agents use to drive generation.
type Model interface {
	// Complete returns the full assistant reply for the conversation.
	Complete(ctx context.Context, messages []core.Message) (string, error)

	// Stream emits text deltas as they arrive. Both channels are closed by the
	// producer; at most one error is sent.
	Stream(ctx context.Context, messages []core.Message) (<-chan string, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Generate completes a single user prompt.
func Generate(ctx context.Context, m Model, prompt string) (string, error) {
	return m.Complete(ctx, []core.Message{core.UserMessage(prompt)})
}

// Collect drains a stream into the concatenated text. Text received before an
// error is returned alongside it.
func Collect(textCh <-chan string, errCh <-chan error) (string, error) {
	var b strings.Builder
	for chunk := range textCh {
		b.WriteString(chunk)
	}
	if err := <-errCh; err != nil {
		return b.String(), err
	}
	return b.String(), nil
}

// StreamFromComplete adapts a one-shot completion into the streaming contract
// by emitting the whole reply as a single delta.
func StreamFromComplete(ctx context.Context, complete func(context.Context) (string, error)) (<-chan string, <-chan error) {
	out := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		text, err := complete(ctx)
		if err != nil {
			errCh <- err
			return
		}
		if text != "" {
			out <- text
		}
	}()
	return out, errCh
}
