package ratelimit

import (
	"testing"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

func TestApplyFailureMonotonicBackoff(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	state := models.RateLimitState{AccountID: "a1"}

	state = Apply(state, Outcome{Kind: OutcomeFailure}, now)
	if state.ConsecutiveFailures != 1 {
		t.Fatalf("expected 1 failure, got %d", state.ConsecutiveFailures)
	}
	if state.CircuitOpenUntil == nil || state.CircuitOpenUntil.Before(now.Add(60*time.Second)) {
		t.Fatalf("expected circuit_open_until >= now+60s, got %v", state.CircuitOpenUntil)
	}
	first := *state.CircuitOpenUntil

	state = Apply(state, Outcome{Kind: OutcomeFailure}, now)
	if state.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 failures, got %d", state.ConsecutiveFailures)
	}
	second := *state.CircuitOpenUntil
	if !second.After(first) {
		t.Fatalf("expected backoff to increase: first=%v second=%v", first, second)
	}
	if got, want := second.Sub(now), 2*first.Sub(now); got != want {
		t.Fatalf("expected backoff to double: got %v want %v", got, want)
	}
}

func TestApplyBackoffCappedAt30Minutes(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	state := models.RateLimitState{AccountID: "a1"}
	for i := 0; i < 10; i++ {
		state = Apply(state, Outcome{Kind: OutcomeFailure}, now)
	}
	if state.CircuitOpenUntil.Sub(now) > 30*time.Minute {
		t.Fatalf("backoff exceeded 30m cap: %v", state.CircuitOpenUntil.Sub(now))
	}
}

func TestApplySuccessResetsFailuresNotCircuit(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	state := models.RateLimitState{AccountID: "a1"}
	state = Apply(state, Outcome{Kind: OutcomeFailure}, now)
	openUntil := *state.CircuitOpenUntil

	// Success shortly after, before the circuit has closed.
	state = Apply(state, Outcome{Kind: OutcomeSuccess}, now.Add(5*time.Second))
	if state.ConsecutiveFailures != 0 {
		t.Fatalf("expected failures reset to 0, got %d", state.ConsecutiveFailures)
	}
	if state.CircuitOpenUntil == nil || !state.CircuitOpenUntil.Equal(openUntil) {
		t.Fatalf("success should not shorten outstanding circuit_open_until: got %v want %v", state.CircuitOpenUntil, openUntil)
	}
}

func TestApplyRateLimited(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	state := models.RateLimitState{AccountID: "a1"}
	state = Apply(state, Outcome{Kind: OutcomeRateLimited, RetryAfter: 120 * time.Second}, now)

	want := now.Add(120 * time.Second)
	if state.CircuitOpenUntil == nil || !state.CircuitOpenUntil.Equal(want) {
		t.Fatalf("got %v want %v", state.CircuitOpenUntil, want)
	}
}

func TestShouldFetchNilStateAllows(t *testing.T) {
	var state *models.RateLimitState
	if !ShouldFetch(state, time.Now()) {
		t.Fatal("absence of state should allow fetch")
	}
}

func TestShouldFetchDeniedDuringOpenCircuit(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(1 * time.Minute)
	state := &models.RateLimitState{CircuitOpenUntil: &future}
	if ShouldFetch(state, now) {
		t.Fatal("expected fetch to be denied while circuit is open")
	}
	if !ShouldFetch(state, future.Add(time.Second)) {
		t.Fatal("expected fetch to be allowed once circuit closes")
	}
}

func TestShouldFetchDeniedWhenQuotaExhausted(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	zero := 0
	future := now.Add(time.Minute)
	state := &models.RateLimitState{Remaining: &zero, ResetAt: &future}
	if ShouldFetch(state, now) {
		t.Fatal("expected fetch denied when remaining=0 and reset_at in the future")
	}
	if !ShouldFetch(state, future) {
		t.Fatal("expected fetch allowed once reset_at has passed")
	}
}
