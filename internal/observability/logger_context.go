// Package observability carries request- and message-scoped loggers
// through context so the ingestor API, the queue consumer and the
// use cases all annotate one correlated stream.
package observability

import (
	"context"
	"log/slog"
)

type ctxKey int

const loggerKey ctxKey = iota

// ContextWithLogger returns a context carrying lg. A nil context or
// logger is returned unchanged so call sites can chain without checks.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, lg)
}

// LoggerFromContext returns the logger carried by ctx, falling back to
// slog.Default so callers never receive nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerKey).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// WithAttrs derives the context logger with extra attributes and stores
// the result back, so one call scopes every downstream log line to the
// same correlation fields (request id on the API side, message and job
// ids on the worker side).
func WithAttrs(ctx context.Context, attrs ...any) (context.Context, *slog.Logger) {
	lg := LoggerFromContext(ctx).With(attrs...)
	return ContextWithLogger(ctx, lg), lg
}
