// Package clients provides HTTP client adapters for downstream services.
package clients

import (
	"errors"
	"fmt"
	"time"
)

// Transport failures of the shared client. The acl package turns them into
// domain upstream errors; nothing above the adapters sees these directly.
var (
	// ErrCircuitOpen means the breaker for the downstream is rejecting calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error once retries run out.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrRateLimited means ctx ended while waiting for a rate limit token.
	ErrRateLimited = errors.New("rate limited")
)

// ServerError is a 5xx answer. It counts against the circuit breaker and is
// retried; 4xx answers are returned to the caller as responses instead.
type ServerError struct {
	Status int

	// RetryAfter is the server's requested wait, zero when it sent none.
	RetryAfter time.Duration
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d", e.Status)
}

// ServerStatus returns the status of a ServerError anywhere in err's chain.
func ServerStatus(err error) (int, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status, true
	}

	return 0, false
}
