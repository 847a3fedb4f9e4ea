// Package provider defines the per-platform fetcher contract: one adapter
// per platform, each mapping outbound HTTP outcomes to a fixed error
// taxonomy and yielding a typed raw payload.
package provider

import (
	"context"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

// Adapter is satisfied by every platform's real and mock fetcher. handle is
// the account's PlatformHandle (username/actor/playlist id/etc): adapters
// are shared across every account on a platform, so the account-specific
// identity has to travel with each call rather than live on the Adapter
// itself.
type Adapter interface {
	Platform() models.Platform
	Fetch(ctx context.Context, token, handle string) (RawPayload, Envelope, error)
}

// Envelope carries whatever rate-limit bookkeeping the provider exposed on
// this call, independent of success/failure, so the caller can hand it to
// the Rate-Limit Gate.
type Envelope struct {
	Remaining  *int
	LimitTotal *int
	ResetAt    *time.Time
}

// ErrorKind enumerates the fixed provider error taxonomy.
type ErrorKind string

const (
	ErrRateLimited ErrorKind = "rate_limited"
	ErrAuthExpired ErrorKind = "auth_expired"
	ErrNetwork     ErrorKind = "network_error"
	ErrAPI         ErrorKind = "api_error"
	ErrParse       ErrorKind = "parse_error"
)

// Error is the concrete error type every Adapter.Fetch returns on failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration // ErrRateLimited
	Status     int           // ErrAPI
	cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: ErrRateLimited, RetryAfter: retryAfter, Message: "rate limited"}
}

func AuthExpired(msg string) *Error {
	return &Error{Kind: ErrAuthExpired, Message: msg}
}

func NetworkError(cause error) *Error {
	return &Error{Kind: ErrNetwork, Message: cause.Error(), cause: cause}
}

func APIError(status int, msg string) *Error {
	return &Error{Kind: ErrAPI, Status: status, Message: msg}
}

func ParseError(msg string, cause error) *Error {
	return &Error{Kind: ErrParse, Message: msg, cause: cause}
}
