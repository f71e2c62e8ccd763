package dto

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
)

// TraceIDKey is the gin context key checked first by GetTraceID.
const TraceIDKey = "trace_id"

// MapDomainError maps a domain error to an HTTP status code and error response.
// Upstream is checked before validation: an upstream error may wrap a cause
// that is itself a validation failure. Unknown errors become a generic 500.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case domain.IsNotFound(err):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, nf.Error())
		}

		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, err.Error())

	case domain.IsUpstream(err):
		resp := NewErrorResponse(ErrorCodeUpstream, err.Error())

		var up *domain.UpstreamError
		if errors.As(err, &up) {
			resp.Error.Message = up.Error()
		}

		resp.Error.Retryable = domain.IsRetryable(err)

		return http.StatusServiceUnavailable, resp

	case domain.IsInvalidDate(err):
		var id *domain.InvalidDateError
		if errors.As(err, &id) {
			return http.StatusBadRequest, NewErrorResponseWithDetails(ErrorCodeInvalidDate, id.Error(),
				map[string]string{"date": id.Reason})
		}

		return http.StatusBadRequest, NewErrorResponse(ErrorCodeInvalidDate, err.Error())

	case domain.IsValidation(err):
		resp := NewErrorResponse(ErrorCodeValidation, err.Error())

		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			resp.Error.Message = ve.Error()
			if ve.Field != "" {
				resp.Error.Details = map[string]string{ve.Field: ve.Message}
			}
		}

		return http.StatusBadRequest, resp

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, NewErrorResponse(ErrorCodeTimeout, "request timeout exceeded")

	default:
		// Unknown errors get a generic message to avoid leaking internals
		return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}
}

// GetTraceID returns the request's trace identifier: an explicit value set on
// the gin context, else the active OpenTelemetry trace, else X-Request-ID.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}

		return ""
	}

	if c.Request == nil {
		return ""
	}

	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return c.Request.Header.Get("X-Request-ID")
}

// HandleError writes the mapped error response for err.
// 5xx responses are logged with the full error.
func HandleError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	resp.TraceID = GetTraceID(c)

	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "request failed",
			slog.Int("status", status),
			slog.String("trace_id", resp.TraceID),
			slog.Any("error", err))
	}

	c.JSON(status, resp)
}

// AbortWithErrorCode aborts the chain with a response for code.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}
