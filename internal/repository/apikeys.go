package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pulsetrail/aggregator/internal/apperr"
)

// LookupUserIDByKeyHash resolves the user-id owning an API key by its
// sha256 hash. Only the hash is ever compared; the plaintext key never
// reaches the database.
func (r *Repository) LookupUserIDByKeyHash(ctx context.Context, keyHash string) (string, error) {
	var userID, keyID string
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id FROM app.api_keys WHERE key_hash = $1`, keyHash,
	).Scan(&keyID, &userID)
	if err == pgx.ErrNoRows {
		return "", apperr.New(apperr.KindNotFound, "api key not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindStoreError, "query api key", err)
	}

	if _, err := r.db.Exec(ctx,
		`UPDATE app.api_keys SET last_used_at = $2 WHERE id = $1`, keyID, time.Now().UTC(),
	); err != nil {
		return "", apperr.Wrap(apperr.KindStoreError, "touch api key last_used_at", err)
	}

	return userID, nil
}
