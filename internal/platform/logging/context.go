package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type ctxKey struct{}

var fallbackLogger atomic.Pointer[slog.Logger]

func init() {
	fallbackLogger.Store(slog.Default())
}

// SetDefault installs logger as both the process slog default and the
// logger returned for contexts that carry none.
func SetDefault(logger *slog.Logger) {
	fallbackLogger.Store(logger)
	slog.SetDefault(logger)
}

// FromContext returns the request-scoped logger, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, nil)
}

// FromContextOr returns the request-scoped logger, else fallback, else the
// default logger.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return logger
		}
	}

	if fallback != nil {
		return fallback
	}

	return fallbackLogger.Load()
}

// WithContext stores logger as the request-scoped logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// With derives the request-scoped logger with attrs added.
func With(ctx context.Context, attrs ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(attrs...))
}

// WithRequestID tags the request-scoped logger with request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String("request_id", id))
}

// WithCorrelationID tags the request-scoped logger with correlation_id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String("correlation_id", id))
}

// WithTraceID tags the request-scoped logger with the OpenTelemetry trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String("trace_id", id))
}

// WithSymbol tags every later line of the request with the ticker symbol.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return With(ctx, slog.String("symbol", symbol))
}
