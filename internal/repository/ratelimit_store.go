package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/models"
)

// GetRateLimitState reads an account's RateLimitState, satisfying
// ratelimit.Store. Absence of a row is not an error: the Gate treats a
// zero-value state as "never throttled".
func (r *Repository) GetRateLimitState(ctx context.Context, accountID string) (models.RateLimitState, error) {
	var s models.RateLimitState
	s.AccountID = accountID
	err := r.db.QueryRow(ctx, `
		SELECT remaining, limit_total, reset_at, consecutive_failures, last_failure_at, circuit_open_until
		FROM app.rate_limits WHERE account_id = $1`, accountID,
	).Scan(&s.Remaining, &s.LimitTotal, &s.ResetAt, &s.ConsecutiveFailures, &s.LastFailureAt, &s.CircuitOpenUntil)
	if err == pgx.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return models.RateLimitState{}, apperr.Wrap(apperr.KindStoreError, "query rate limit state", err)
	}
	return s, nil
}

// PutRateLimitState persists the Gate's transitioned state, satisfying
// ratelimit.Store.
func (r *Repository) PutRateLimitState(ctx context.Context, state models.RateLimitState) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO app.rate_limits
			(account_id, remaining, limit_total, reset_at, consecutive_failures, last_failure_at, circuit_open_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			remaining            = EXCLUDED.remaining,
			limit_total          = EXCLUDED.limit_total,
			reset_at             = EXCLUDED.reset_at,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_failure_at      = EXCLUDED.last_failure_at,
			circuit_open_until   = EXCLUDED.circuit_open_until`,
		state.AccountID, state.Remaining, state.LimitTotal, state.ResetAt,
		state.ConsecutiveFailures, state.LastFailureAt, state.CircuitOpenUntil)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "upsert rate limit state", err)
	}
	return nil
}
