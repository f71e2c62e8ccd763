// Package dto holds the request and response shapes of the quote API and the
// mapping from domain errors onto them.
package dto

import "net/http"

// ErrorResponse is the envelope of every non-2xx answer.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail describes one failure. Details carries per-field messages for
// validation failures and the reason for date failures.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`

	// Retryable tells clients an UPSTREAM_ERROR is transient.
	Retryable bool `json:"retryable,omitempty"`
}

// Machine-readable error codes.
const (
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeInvalidDate  = "INVALID_DATE"
	ErrorCodeUpstream     = "UPSTREAM_ERROR"
	ErrorCodeBadRequest   = "BAD_REQUEST"
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	ErrorCodeForbidden    = "FORBIDDEN"
	ErrorCodeTimeout      = "TIMEOUT"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:     http.StatusNotFound,
	ErrorCodeValidation:   http.StatusBadRequest,
	ErrorCodeInvalidDate:  http.StatusBadRequest,
	ErrorCodeBadRequest:   http.StatusBadRequest,
	ErrorCodeUnauthorized: http.StatusUnauthorized,
	ErrorCodeForbidden:    http.StatusForbidden,
	ErrorCodeUpstream:     http.StatusServiceUnavailable,
	ErrorCodeTimeout:      http.StatusGatewayTimeout,
}

// HTTPStatusFromCode returns the status for code; unknown codes are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// NewErrorResponse creates an envelope for code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// NewErrorResponseWithDetails creates an envelope carrying details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.Error.Details = details

	return resp
}

// WithTraceID sets the trace ID and returns e.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}
