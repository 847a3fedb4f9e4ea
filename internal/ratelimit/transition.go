// Package ratelimit implements the Rate-Limit Gate: per-account counters,
// failure streaks and circuit-breaker state that decide whether a fetch
// may proceed.
package ratelimit

import (
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

// OutcomeKind names the fetch outcome that drives a state transition.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeFailure // network/5xx/parse error
	OutcomeAuthRevoked
)

// Outcome is the result of one fetch attempt, as observed by the Gate.
type Outcome struct {
	Kind OutcomeKind

	// Populated on OutcomeSuccess when the provider exposes them.
	Remaining  *int
	LimitTotal *int
	ResetAt    *time.Time

	// Populated on OutcomeRateLimited.
	RetryAfter time.Duration
}

const backoffBase = 60 * time.Second
const backoffCap = 30 * time.Minute

// Apply advances an account's circuit-breaker state for one observed fetch
// outcome. now is the instant the outcome was observed. The returned state
// is a copy; callers persist it themselves.
func Apply(state models.RateLimitState, outcome Outcome, now time.Time) models.RateLimitState {
	next := state

	switch outcome.Kind {
	case OutcomeSuccess:
		// Failure counter bleeds off on the first success.
		next.ConsecutiveFailures = 0
		if outcome.Remaining != nil {
			next.Remaining = outcome.Remaining
		}
		if outcome.LimitTotal != nil {
			next.LimitTotal = outcome.LimitTotal
		}
		if outcome.ResetAt != nil {
			next.ResetAt = outcome.ResetAt
		}
		// A success never retroactively shortens an outstanding
		// circuit_open_until; it simply doesn't extend it either.

	case OutcomeRateLimited:
		candidate := now.Add(outcome.RetryAfter)
		next.CircuitOpenUntil = laterOf(next.CircuitOpenUntil, candidate)

	case OutcomeFailure:
		next.ConsecutiveFailures++
		next.LastFailureAt = &now
		backoff := backoffBase * time.Duration(1<<uint(clamp(next.ConsecutiveFailures, 1, 30)-1))
		if backoff > backoffCap {
			backoff = backoffCap
		}
		candidate := now.Add(backoff)
		next.CircuitOpenUntil = laterOf(next.CircuitOpenUntil, candidate)

	case OutcomeAuthRevoked:
		// Gate state is untouched; the caller (scheduler) marks the
		// account inactive and does not retry. No circuit-breaker
		// bookkeeping applies to a revoked account.
	}

	return next
}

// ShouldFetch is a thin re-export of the model predicate so callers only
// need to import this package.
func ShouldFetch(state *models.RateLimitState, now time.Time) bool {
	return state.ShouldFetch(now)
}

func laterOf(a *time.Time, b time.Time) *time.Time {
	if a == nil || b.After(*a) {
		return &b
	}
	return a
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
