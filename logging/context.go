package logging

import (
	"context"

	"github.com/chainguard-dev/clog"
)

type ctxKey struct{}

// WithLogger returns a context carrying l. When l is an *AstraLogger its slog
// handler is also installed as the clog context logger so library code using
// clog.FromContext writes to the same sink.
func WithLogger(ctx context.Context, l Logger) context.Context {
	ctx = context.WithValue(ctx, ctxKey{}, l)
	switch v := l.(type) {
	case *AstraLogger:
		ctx = clog.WithLogger(ctx, clog.NewLogger(v.Slog()))
	case *SlogAdapter:
		ctx = clog.WithLogger(ctx, clog.NewLogger(v.Logger))
	}
	return ctx
}

// FromContext returns the logger stored by WithLogger, or a NoOpLogger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return NoOpLogger{}
}
