package models

import "time"

// RateLimitState is the per-account mutable counters the Rate-Limit Gate
// reads and writes on every fetch outcome.
type RateLimitState struct {
	AccountID           string     `json:"account_id"`
	Remaining           *int       `json:"remaining,omitempty"`
	LimitTotal          *int       `json:"limit_total,omitempty"`
	ResetAt             *time.Time `json:"reset_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	CircuitOpenUntil    *time.Time `json:"circuit_open_until,omitempty"`
}

// ShouldFetch implements the gating predicate:
//
//	shouldFetch(state) = (circuit_open_until <= now) AND
//	                      (remaining != 0 OR reset_at <= now)
//
// Absence of state (nil) always allows a fetch.
func (s *RateLimitState) ShouldFetch(now time.Time) bool {
	if s == nil {
		return true
	}

	circuitClosed := s.CircuitOpenUntil == nil || !s.CircuitOpenUntil.After(now)
	if !circuitClosed {
		return false
	}

	hasQuota := s.Remaining == nil || *s.Remaining != 0
	windowElapsed := s.ResetAt != nil && !s.ResetAt.After(now)
	return hasQuota || windowElapsed
}
