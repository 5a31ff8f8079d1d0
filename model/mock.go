package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/astra/core"
)

var _ Model = (*MockModel)(nil)

// MockModel is a lightweight in-memory Model useful for tests and examples.
//
// Replies are resolved in this order: an exact match on the last message's
// content registered with AddResponse, the next queued reply from Enqueue,
// then a "Mock response to: <prompt>" echo.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	queue     []string
	errs      []error
	calls     [][]core.Message
}

// NewMockModel constructs a MockModel reporting the given name and provider.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
	return m
}

// Enqueue appends replies returned in FIFO order by subsequent calls.
func (m *MockModel) Enqueue(responses ...string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
	return m
}

// FailNext makes the next call return err.
func (m *MockModel) FailNext(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	return m
}

// Calls returns the conversations received so far.
func (m *MockModel) Calls() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete and Stream calls.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastPrompt returns the content of the final message of the latest call.
func (m *MockModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	last := m.calls[len(m.calls)-1]
	if len(last) == 0 {
		return ""
	}
	return last[len(last)-1].Content
}

func (m *MockModel) reply(messages []core.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]core.Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, cp)

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	prompt := messages[len(messages)-1].Content
	if r, ok := m.responses[prompt]; ok {
		return r, nil
	}
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, messages []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.reply(messages)
}

// Stream implements Model; the reply is emitted rune by rune.
func (m *MockModel) Stream(ctx context.Context, messages []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		full, err := m.reply(messages)
		if err != nil {
			errCh <- err
			return
		}
		for _, r := range full {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- string(r):
			}
		}
	}()
	return out, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
