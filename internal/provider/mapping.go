package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ClassifyStatus maps an HTTP status code (plus optional Retry-After) to
// the fixed provider error taxonomy. Status codes in 2xx are not errors
// and are not passed here.
func ClassifyStatus(status int, retryAfterHeader string, bodySnippet string) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited(parseRetryAfter(retryAfterHeader))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthExpired(fmt.Sprintf("status %d: %s", status, bodySnippet))
	default:
		return APIError(status, bodySnippet)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 60 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

// ParseRateLimitHeaders extracts the code-host's X-RateLimit-* headers into
// an Envelope.
func ParseRateLimitHeaders(remaining, limit, reset string) Envelope {
	env := Envelope{}
	if n, err := strconv.Atoi(remaining); err == nil {
		env.Remaining = &n
	}
	if n, err := strconv.Atoi(limit); err == nil {
		env.LimitTotal = &n
	}
	if n, err := strconv.ParseInt(reset, 10, 64); err == nil {
		t := time.Unix(n, 0)
		env.ResetAt = &t
	}
	return env
}
