// Package logging defines the structured-logging interface used across
// gophstore. The engine components never log through package globals; every
// constructor receives a Logger.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Warn(ctx, "durable read failed", "key", key, "error", err)
type Logger interface {
	// Debug logs diagnostic detail (cache hits, index sizes).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs soft failures that were absorbed (a read degraded to "unknown").
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
