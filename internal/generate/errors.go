// internal/generate/errors.go
package generate

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure.
type Kind string

const (
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindOverloaded      Kind = "overloaded"
	KindMalformedOutput Kind = "malformed_output"
	KindPolicyBlocked   Kind = "policy_blocked"
	KindBusy            Kind = "busy"

	// KindUnauthorized means the provider refused our credentials; the
	// server's API key needs attention, not the request.
	KindUnauthorized Kind = "unauthorized"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("content generation is not configured")

// Error is a typed generation failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generate: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("generate: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if it is not a generation error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
