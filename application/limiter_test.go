package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/model"
)

func TestCallLimiter(t *testing.T) {
	l := NewCallLimiter(2)
	assert.Equal(t, 2, l.Remaining())
	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())

	err := l.Increment()
	assert.ErrorIs(t, err, ErrCallLimitExceeded)
	assert.EqualError(t, err, "exceeded max model calls: 2")
	assert.Equal(t, 3, l.Count())
	assert.Equal(t, 0, l.Remaining())
}

func TestCallLimiter_Unlimited(t *testing.T) {
	l := NewCallLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Increment())
	}
	assert.Equal(t, -1, l.Remaining())
	assert.Equal(t, -1, NewCallLimiter(-5).Remaining())
}

func TestCallLimiter_Wrap(t *testing.T) {
	mock := model.NewMockModel("m", "mock").Enqueue("a")
	l := NewCallLimiter(1)
	m := l.Wrap(mock)
	assert.Equal(t, mock.Info(), m.Info())
	assert.Nil(t, l.Wrap(nil))

	msgs := []core.Message{core.UserMessage("hi")}
	out, err := m.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "a", out)

	_, err = model.Collect(m.Stream(context.Background(), msgs))
	assert.ErrorIs(t, err, ErrCallLimitExceeded)
	assert.Equal(t, 1, mock.CallCount())
}
