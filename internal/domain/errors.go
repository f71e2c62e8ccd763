// Package domain contains business logic types and errors.
// Domain errors represent business-level failures, NOT HTTP errors.
// They are infrastructure-agnostic and can be mapped to HTTP/gRPC/etc by adapters.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates business rule validation failed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidDate indicates a quote date that is malformed, outside the
	// provider's coverage, or has no data for the exact day.
	ErrInvalidDate = errors.New("invalid date")

	// ErrUpstream indicates the market data provider could not serve the request.
	ErrUpstream = errors.New("upstream failure")
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// InvalidDateError reports a date the provider cannot serve.
// It matches both ErrInvalidDate and ErrValidation.
type InvalidDateError struct {
	Date   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidDateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid date %q: %s", e.Date, e.Reason)
	}

	return fmt.Sprintf("invalid date %q", e.Date)
}

// Unwrap returns the sentinel errors for errors.Is() support.
func (e *InvalidDateError) Unwrap() []error {
	return []error{ErrInvalidDate, ErrValidation}
}

// NewInvalidDateError creates an invalid date error.
func NewInvalidDateError(date, reason string) error {
	return &InvalidDateError{Date: date, Reason: reason}
}

// UpstreamError describes a failure of the market data provider: transport
// errors, timeouts, rate limiting, authentication rejection or 5xx responses.
type UpstreamError struct {
	Service   string
	Reason    string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %q failed", e.Service)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the sentinel and the underlying cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}

	return []error{ErrUpstream, e.Err}
}

// NewUpstreamError creates a retryable upstream error.
func NewUpstreamError(service, reason string, cause error) error {
	return &UpstreamError{Service: service, Reason: reason, Retryable: true, Err: cause}
}

// NewPermanentUpstreamError creates an upstream error that retrying will not fix,
// such as a rejected API key.
func NewPermanentUpstreamError(service, reason string, cause error) error {
	return &UpstreamError{Service: service, Reason: reason, Err: cause}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
// Invalid dates are validation errors too.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidDate checks if an error is an invalid date error.
func IsInvalidDate(err error) bool {
	return errors.Is(err, ErrInvalidDate)
}

// IsUpstream checks if an error is an upstream error.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// IsRetryable reports whether err is an upstream error worth retrying.
func IsRetryable(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Retryable
	}

	return false
}
