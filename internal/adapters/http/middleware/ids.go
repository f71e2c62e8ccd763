// Package middleware provides the Gin middleware of the quote API: request
// and correlation IDs, gateway auth, logging, recovery and deadlines.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
)

const (
	// HeaderRequestID identifies one API request. It is echoed back and
	// forwarded to the market data and competitor sources.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID ties several requests to one client transaction.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyRequestID is the gin.Context key holding the request ID.
	ContextKeyRequestID = "request_id"

	// ContextKeyCorrelationID is the gin.Context key holding the correlation ID.
	ContextKeyCorrelationID = "correlation_id"

	maxInboundIDLength = 128
)

type contextKey string

const (
	ctxKeyRequestID     contextKey = "request_id"
	ctxKeyCorrelationID contextKey = "correlation_id"
)

// RequestID returns middleware that accepts the caller's X-Request-ID or
// generates a UUID. IDs that are too long or carry characters outside
// [A-Za-z0-9._:-] are replaced, since they end up in upstream headers and logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := inboundID(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ContextKeyRequestID, id)
		c.Header(HeaderRequestID, id)

		ctx := logging.WithRequestID(ContextWithRequestID(c.Request.Context(), id), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CorrelationID returns middleware that accepts the caller's X-Correlation-ID.
// Without one, the request ID starts the transaction; a UUID is generated only
// when RequestID did not run first.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := inboundID(c.GetHeader(HeaderCorrelationID))
		if id == "" {
			id = GetRequestID(c)
		}

		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ContextKeyCorrelationID, id)
		c.Header(HeaderCorrelationID, id)

		ctx := logging.WithCorrelationID(ContextWithCorrelationID(c.Request.Context(), id), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// inboundID returns raw when it is safe to propagate, otherwise "".
func inboundID(raw string) string {
	if raw == "" || len(raw) > maxInboundIDLength {
		return ""
	}

	for i := 0; i < len(raw); i++ {
		b := raw[i]

		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '-', b == '_', b == '.', b == ':':
		default:
			return ""
		}
	}

	return raw
}

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetCorrelationID returns the correlation ID stored by CorrelationID, or "".
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}

// RequestIDFromContext returns the request ID carried by ctx.
// The HTTP client uses it to tag outbound calls.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(ctxKeyRequestID).(string)

	return id
}

// CorrelationIDFromContext returns the correlation ID carried by ctx.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(ctxKeyCorrelationID).(string)

	return id
}

// ContextWithRequestID stores a request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// ContextWithCorrelationID stores a correlation ID in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}
