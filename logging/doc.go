// Package logging provides a minimal logging interface and slog-backed
// adapters for Astra.
//
// The Logger interface defines the levelled methods (Debug, Info, Warn, Error)
// that agents, applications and tools use for observability. This package
// includes:
//
//   - Logger interface for dependency injection
//   - AstraLogger, a structured logger with run / component scoping
//   - SlogAdapter wrapping an existing *slog.Logger
//   - NoOpLogger for silent operation (tests, library embedding)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	app := application.New(agents, tasks, tools, llm, func(o *application.Options) {
//		o.Logger = logger
//	})
package logging
