package biotime

import (
	"errors"
	"fmt"
)

// ErrPageLimitReached is returned when pagination stops at MaxPages while the
// controller still reports a next page.
var ErrPageLimitReached = errors.New("biotime page limit reached")

// AuthenticationError means the controller rejected our credentials or token,
// including after the single re-login retry.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("biotime authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("biotime authentication failed [%d]: %s", e.StatusCode, e.Message)
}

// ExternalServiceError covers every non-auth failure talking to the controller:
// transport errors, timeouts, non-2xx responses and undecodable bodies.
type ExternalServiceError struct {
	StatusCode int
	Path       string
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	msg := fmt.Sprintf("biotime request %s failed", e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" [%d]", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// unauthorizedError is internal: it carries the token that was rejected so the
// cache only drops that exact token.
type unauthorizedError struct {
	status int
	token  string
}

func (e *unauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized [%d]", e.status)
}
