// Package apperr defines the error taxonomy shared by every package in the
// pipeline so the HTTP layer can map errors to status codes in one place.
package apperr

import (
	"errors"
	"fmt"
)

// Kind names the shape of a failure, not a language-level type.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindValidation      Kind = "validation"
	KindRateLimited     Kind = "rate_limited"
	KindAuthExpired     Kind = "auth_expired"
	KindNetworkError    Kind = "network_error"
	KindAPIError        Kind = "api_error"
	KindParseError      Kind = "parse_error"
	KindStoreError      Kind = "store_error"
	KindEncryptionError Kind = "encryption_error"
	KindConflict        Kind = "conflict"
)

// Error is the concrete error value carried through the pipeline.
type Error struct {
	Kind    Kind
	Message string
	// Details carries kind-specific context: retry_after for rate_limited,
	// status for api_error, op for store_error/encryption_error, cause for
	// network_error.
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with no details.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that unwraps to cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches kind-specific context and returns the receiver.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to "" when err is not an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
