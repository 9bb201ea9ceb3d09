// Package requestctx carries the request-scoped logger and trace identifiers
// between middleware, handlers and services.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type key[T any] struct{ name string }

func (k key[T]) store(ctx context.Context, value T) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, k, value)
}

func (k key[T]) load(ctx context.Context) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	value, ok := ctx.Value(k).(T)
	return value, ok
}

var (
	loggerKey = key[*zap.Logger]{name: "logger"}
	traceKey  = key[TraceInfo]{name: "trace"}

	noopLogger = zap.NewNop()
)

// TraceInfo identifies the trace and span serving the request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger returns ctx carrying logger. A nil logger stores the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return loggerKey.store(ctx, logger)
}

// Logger returns the request logger, or NoopLogger when none was stored.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := loggerKey.load(ctx); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger is the shared logger returned when a context has none, so callers
// can compare against it to pick a fallback.
func NoopLogger() *zap.Logger { return noopLogger }

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return traceKey.store(ctx, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	return traceKey.load(ctx)
}

// TraceID is the hex trace ID, or "" outside a traced request.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}
