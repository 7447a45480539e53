package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the API rejected the bearer token. Callers must
	// drop the session and send the user back to the login page.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login when the API refuses the
	// e-mail/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrNoCredentials      = errors.New("missing credentials")
)

// Error is a non-2xx answer from the API that has no dedicated sentinel.
type Error struct {
	Method   string
	Endpoint string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.Status, msg)
}

// Temporary reports whether retrying the request may succeed.
func (e *Error) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// IsUnauthorized is shorthand for errors.Is(err, ErrUnauthorized).
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
