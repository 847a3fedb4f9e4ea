package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/scheduler"
)

// ListActiveAccounts enumerates every active Account joined with its owning
// user id, satisfying scheduler.AccountStore.
func (r *Repository) ListActiveAccounts(ctx context.Context) ([]scheduler.ActiveAccount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.profile_id, a.platform, a.platform_user_id, a.platform_handle,
		       c.enc_access_token, c.enc_refresh_token, c.token_expires_at, a.active, a.last_fetched_at,
		       p.user_id
		FROM app.accounts a
		JOIN app.profiles p ON p.id = a.profile_id
		JOIN app.platform_credentials c ON c.account_id = a.id
		WHERE a.active`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "query active accounts", err)
	}
	defer rows.Close()

	var out []scheduler.ActiveAccount
	for rows.Next() {
		var a scheduler.ActiveAccount
		if err := rows.Scan(
			&a.ID, &a.ProfileID, &a.Platform, &a.PlatformUserID, &a.PlatformHandle,
			&a.EncAccessToken, &a.EncRefreshToken, &a.TokenExpiresAt, &a.Active, &a.LastFetchedAt,
			&a.UserID,
		); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "scan active account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "iterate active accounts", err)
	}
	return out, nil
}

// MarkInactive deactivates an Account after its token is rejected, so the
// scheduler stops retrying it until a fresh OAuth flow completes.
func (r *Repository) MarkInactive(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx, `UPDATE app.accounts SET active = FALSE WHERE id = $1`, accountID)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "mark account inactive", err)
	}
	return nil
}

// TouchLastFetched records the instant a fetch completed for accountID.
func (r *Repository) TouchLastFetched(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE app.accounts SET last_fetched_at = $2 WHERE id = $1`, accountID, at)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "touch last_fetched_at", err)
	}
	return nil
}

// FindByPlatformUserID looks up an Account by its (platform, platform_user_id)
// pair, satisfying oauthflow.AccountStore.
func (r *Repository) FindByPlatformUserID(ctx context.Context, platform models.Platform, platformUserID string) (models.Account, bool, error) {
	var a models.Account
	err := r.db.QueryRow(ctx, `
		SELECT a.id, a.profile_id, a.platform, a.platform_user_id, a.platform_handle,
		       c.enc_access_token, c.enc_refresh_token, c.token_expires_at, a.active, a.last_fetched_at
		FROM app.accounts a
		JOIN app.platform_credentials c ON c.account_id = a.id
		WHERE a.platform = $1 AND a.platform_user_id = $2`, platform, platformUserID,
	).Scan(&a.ID, &a.ProfileID, &a.Platform, &a.PlatformUserID, &a.PlatformHandle,
		&a.EncAccessToken, &a.EncRefreshToken, &a.TokenExpiresAt, &a.Active, &a.LastFetchedAt)
	if err == pgx.ErrNoRows {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, apperr.Wrap(apperr.KindStoreError, "query account by platform user id", err)
	}
	return a, true, nil
}

// UpsertAccount inserts a new Account or updates the existing row when
// account.ID is already set, satisfying oauthflow.AccountStore.
func (r *Repository) UpsertAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindStoreError, "begin upsert account tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO app.accounts
			(id, profile_id, platform, platform_user_id, platform_handle, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			platform_handle = EXCLUDED.platform_handle,
			active          = EXCLUDED.active`,
		account.ID, account.ProfileID, account.Platform, account.PlatformUserID, account.PlatformHandle,
		account.Active); err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindStoreError, "upsert account", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO app.platform_credentials
			(account_id, enc_access_token, enc_refresh_token, token_expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE SET
			enc_access_token  = EXCLUDED.enc_access_token,
			enc_refresh_token = EXCLUDED.enc_refresh_token,
			token_expires_at  = EXCLUDED.token_expires_at`,
		account.ID, account.EncAccessToken, account.EncRefreshToken, account.TokenExpiresAt); err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindStoreError, "upsert platform credentials", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindStoreError, "commit upsert account tx", err)
	}

	return account, nil
}

// GetAccountOwnerUserID resolves the user-id that owns accountID through
// its profile, used by the raw-snapshot HTTP handler to enforce that a
// caller may only read accounts under their own user-id.
func (r *Repository) GetAccountOwnerUserID(ctx context.Context, accountID string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx, `
		SELECT p.user_id
		FROM app.accounts a
		JOIN app.profiles p ON p.id = a.profile_id
		WHERE a.id = $1`, accountID,
	).Scan(&userID)
	if err == pgx.ErrNoRows {
		return "", apperr.New(apperr.KindNotFound, "account not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindStoreError, "query account owner", err)
	}
	return userID, nil
}
