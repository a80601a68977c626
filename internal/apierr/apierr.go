// Package apierr defines the JSON error envelope the wire protocol uses
// (spec section 6) and maps error kinds to HTTP status codes in both
// directions.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error_kind values the wire protocol's error envelope
// carries.
type Kind string

const (
	Unauthorized     Kind = "Unauthorized"
	PermissionDenied Kind = "PermissionDenied"
	NotFound         Kind = "NotFound"
	AlreadyExists    Kind = "AlreadyExists"
	HashMismatch     Kind = "HashMismatch"
	BadRequest       Kind = "BadRequest"
	Internal         Kind = "Internal"
)

// Error is the JSON error envelope: {error_kind, message}.
type Error struct {
	ErrorKind Kind   `json:"error_kind"`
	Message   string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorKind, e.Message)
}

// New builds an *Error for kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{ErrorKind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an existing error by copying its message. The
// original error is not retained, so errors.Is/As cannot reach it through
// the result.
func Wrap(kind Kind, err error) *Error {
	return &Error{ErrorKind: kind, Message: err.Error()}
}

// As extracts an *Error from err via errors.As, for callers that need to
// branch on Kind.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode maps an error kind to the HTTP status the server responds
// with.
func (k Kind) StatusCode() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case HashMismatch:
		return http.StatusUnprocessableEntity
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindFromStatus maps an HTTP status code back to an error kind, used by
// the transport client to classify a non-2xx response whose body failed
// to decode as an Error envelope.
func KindFromStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return Unauthorized
	case http.StatusForbidden:
		return PermissionDenied
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return AlreadyExists
	case http.StatusUnprocessableEntity:
		return HashMismatch
	case http.StatusBadRequest:
		return BadRequest
	default:
		return Internal
	}
}

// IsTransient reports whether status represents a transient transport
// failure that should be retried with backoff (spec section 7): 5xx
// responses. Timeouts and connection resets are transient too but arrive
// as Go errors, not status codes, and are handled separately by callers.
func IsTransient(status int) bool {
	return status >= 500
}
