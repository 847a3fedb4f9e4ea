package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/models"
)

// CreateUser inserts a new User, assigning a fresh id.
func (r *Repository) CreateUser(ctx context.Context, email, displayName string) (models.User, error) {
	now := time.Now().UTC()
	u := models.User{ID: uuid.NewString(), Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	_, err := r.db.Exec(ctx,
		`INSERT INTO app.users (id, email, display_name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.DisplayName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.KindStoreError, "insert user", err)
	}
	return u, nil
}

// GetUser returns the User for id.
func (r *Repository) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, display_name, created_at, updated_at FROM app.users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return models.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.KindStoreError, "query user", err)
	}
	return u, nil
}
