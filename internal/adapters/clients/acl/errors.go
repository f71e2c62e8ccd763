package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

// maxErrorBody bounds how much of an error body is read for context.
const maxErrorBody = 4 << 10

// ErrorResponse is the error body returned by the market data API.
// The API reports failures either as {"status","error"} or {"status","message"}.
type ErrorResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// GetMessage returns whichever message field the API populated.
func (e *ErrorResponse) GetMessage() string {
	if e.Error != "" {
		return e.Error
	}

	return e.Message
}

// ParseErrorResponse attempts to parse an error response body.
// Returns nil if the body is empty or cannot be parsed.
func ParseErrorResponse(body io.Reader) *ErrorResponse {
	if body == nil {
		return nil
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&errResp); err != nil {
		return nil
	}

	if errResp.Status == "" && errResp.GetMessage() == "" {
		return nil
	}

	return &errResp
}

// MapHTTPError maps a failed call to the market data API onto the domain taxonomy.
//
// notFound is returned for 404 responses; what a 404 means depends on the
// endpoint (unknown ticker vs. no session on the requested date). When nil,
// a NotFoundError for the service is used.
//
// Everything that is not the caller's fault becomes an UpstreamError:
//   - transport failures, circuit open, rate limit wait aborted: retryable
//   - 429 and 5xx: retryable
//   - 401/403: permanent, the API key was rejected
//   - other 4xx: permanent, the request was malformed
func MapHTTPError(resp *http.Response, clientErr error, serviceName, operation string, notFound error) error {
	if clientErr != nil {
		return mapClientError(clientErr, serviceName, operation)
	}

	if resp == nil {
		return domain.NewUpstreamError(serviceName, operation+": no response received", nil)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var errResp *ErrorResponse
	if resp.Body != nil {
		errResp = ParseErrorResponse(resp.Body)
	}

	return mapStatusCode(resp.StatusCode, errResp, serviceName, operation, notFound)
}

// mapClientError translates client-level errors to upstream errors.
func mapClientError(err error, serviceName, operation string) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewUpstreamError(serviceName, "circuit breaker open during "+operation, err)

	case errors.Is(err, clients.ErrRateLimited):
		return domain.NewUpstreamError(serviceName, "rate limit wait aborted during "+operation, err)

	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewUpstreamError(serviceName, operation+" timed out", err)

	default:
		if status, ok := clients.ServerStatus(err); ok {
			return domain.NewUpstreamError(serviceName, fmt.Sprintf("%s failed with status %d", operation, status), err)
		}

		return domain.NewUpstreamError(serviceName, operation+" failed", err)
	}
}

// mapStatusCode translates HTTP status codes to domain errors.
func mapStatusCode(status int, errResp *ErrorResponse, serviceName, operation string, notFound error) error {
	message := defaultMessageForStatus(status, operation)
	if errResp != nil && errResp.GetMessage() != "" {
		message = errResp.GetMessage()
	}

	switch {
	case status == http.StatusNotFound:
		if notFound != nil {
			return notFound
		}

		return domain.NewNotFoundError(serviceName, operation)

	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.NewPermanentUpstreamError(serviceName, message, nil)

	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return domain.NewUpstreamError(serviceName, message, nil)

	default:
		return domain.NewPermanentUpstreamError(serviceName, message, nil)
	}
}

// defaultMessageForStatus returns a default message for an HTTP status.
func defaultMessageForStatus(status int, operation string) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "api key rejected"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return fmt.Sprintf("%s failed with status %d", operation, status)
	}
}
