package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/model"
)

// ErrCallLimitExceeded is returned once a run has used its model call budget.
var ErrCallLimitExceeded = errors.New("exceeded max model calls")

// CallLimiter enforces a maximum number of model calls per run.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter. If max <= 0, unlimited calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	if max < 0 {
		max = 0
	}
	return &CallLimiter{max: max}
}

// Increment counts a call and fails when the limit is exceeded.
func (l *CallLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: %d", ErrCallLimitExceeded, l.max)
	}
	return nil
}

// Count returns the number of calls made.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}
	if r := l.max - l.count; r > 0 {
		return r
	}
	return 0
}

// Wrap returns m guarded by the limiter.
func (l *CallLimiter) Wrap(m model.Model) model.Model {
	if m == nil {
		return nil
	}
	return &limitedModel{next: m, limiter: l}
}

type limitedModel struct {
	next    model.Model
	limiter *CallLimiter
}

func (m *limitedModel) Info() model.Info { return m.next.Info() }

func (m *limitedModel) Complete(ctx context.Context, msgs []core.Message) (string, error) {
	if err := m.limiter.Increment(); err != nil {
		return "", err
	}
	return m.next.Complete(ctx, msgs)
}

func (m *limitedModel) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	if err := m.limiter.Increment(); err != nil {
		textCh := make(chan string)
		errCh := make(chan error, 1)
		close(textCh)
		errCh <- err
		close(errCh)
		return textCh, errCh
	}
	return m.next.Stream(ctx, msgs)
}
