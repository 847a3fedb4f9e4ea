package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/models"
)

// CreateProfile inserts a new Profile under userID.
func (r *Repository) CreateProfile(ctx context.Context, userID, slug, name, description string) (models.Profile, error) {
	p := models.Profile{ID: uuid.NewString(), UserID: userID, Slug: slug, Name: name, Description: description}
	_, err := r.db.Exec(ctx,
		`INSERT INTO app.profiles (id, user_id, slug, name, description) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.UserID, p.Slug, p.Name, p.Description)
	if err != nil {
		return models.Profile{}, apperr.Wrap(apperr.KindStoreError, "insert profile", err)
	}
	return p, nil
}

// ListProfilesForUser returns every Profile owned by userID.
func (r *Repository) ListProfilesForUser(ctx context.Context, userID string) ([]models.Profile, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, slug, name, description FROM app.profiles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "query profiles", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Slug, &p.Name, &p.Description); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "scan profile", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListFiltersForProfile returns every ProfileFilter bound to profileID, for
// use with materialize.FilterForProfile.
func (r *Repository) ListFiltersForProfile(ctx context.Context, profileID string) ([]models.ProfileFilter, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, profile_id, account_id, filter_type, filter_key, filter_value
		FROM app.profile_filters WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "query profile filters", err)
	}
	defer rows.Close()

	var out []models.ProfileFilter
	for rows.Next() {
		var f models.ProfileFilter
		if err := rows.Scan(&f.ID, &f.ProfileID, &f.AccountID, &f.Type, &f.Key, &f.Value); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "scan profile filter", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListHiddenHandlesForProfile returns the platform handles hidden from
// profileID via an account-visibility override, in the set shape
// materialize.FilterForProfile expects.
func (r *Repository) ListHiddenHandlesForProfile(ctx context.Context, profileID string) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.platform_handle
		FROM app.profile_visibility v
		JOIN app.accounts a ON a.id = v.account_id
		WHERE v.profile_id = $1 AND v.hidden`, profileID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "query profile visibility", err)
	}
	defer rows.Close()

	hidden := make(map[string]struct{})
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "scan profile visibility", err)
		}
		hidden[handle] = struct{}{}
	}
	return hidden, rows.Err()
}

// GetProfile returns the Profile for id.
func (r *Repository) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, slug, name, description FROM app.profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Slug, &p.Name, &p.Description)
	if err == pgx.ErrNoRows {
		return models.Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
	}
	if err != nil {
		return models.Profile{}, apperr.Wrap(apperr.KindStoreError, "query profile", err)
	}
	return p, nil
}
