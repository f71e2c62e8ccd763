package marketwatch

import "errors"

var (
	// ErrLoginRejected is returned when the login endpoint refuses the credentials.
	ErrLoginRejected = errors.New("login rejected")

	// ErrLoginFailed is returned when the login request could not complete.
	ErrLoginFailed = errors.New("login failed")

	// ErrSessionRejected is returned when a page answers 401/403 or bounces
	// the request to the login page.
	ErrSessionRejected = errors.New("session rejected")

	// ErrUnexpectedStatus is returned for page responses other than 200.
	ErrUnexpectedStatus = errors.New("unexpected page status")

	// ErrPageShape is returned when the page does not look like a stock page.
	ErrPageShape = errors.New("unexpected page shape")
)
