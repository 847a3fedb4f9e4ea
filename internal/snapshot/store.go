// Package snapshot implements the append-only, content-addressed store of
// raw provider payloads and materialized timelines: blob rows deduped by
// payload hash, metadata rows keyed by (store-id, version).
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/models"
)

// PutOptions carries the optional tags/parents for a Put call.
type PutOptions struct {
	Tags    []string
	Parents []models.SnapshotParent
}

// Store is the append-only content-addressed blob + metadata store.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ErrNotFound is returned by GetLatest/GetVersion when the store-id (or
// version) has no rows.
var ErrNotFound = apperr.New(apperr.KindNotFound, "snapshot not found")

// Put assigns the next monotonically increasing version for storeID,
// content-addresses payload by its sha256 hash, and persists both the blob
// (deduped by hash) and the metadata row in one transaction.
func (s *Store) Put(ctx context.Context, storeID string, payload []byte, opts PutOptions) (models.SnapshotMeta, error) {
	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])

	parentsJSON, err := json.Marshal(opts.Parents)
	if err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "marshal parents", err).
			WithDetails(map[string]any{"operation": "put"})
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "begin tx", err).
			WithDetails(map[string]any{"operation": "put"})
	}
	defer tx.Rollback(ctx)

	// Serialize version assignment per store-id: advisory lock keyed by a
	// hash of the store-id keeps concurrent writers to distinct store-ids
	// from blocking each other while still giving strictly increasing
	// versions per store-id.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, storeID); err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "acquire lock", err).
			WithDetails(map[string]any{"operation": "put"})
	}

	var nextVersion int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshot_versions WHERE store_id = $1`,
		storeID,
	).Scan(&nextVersion)
	if err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "assign version", err).
			WithDetails(map[string]any{"operation": "put"})
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshot_blobs (content_hash, data) VALUES ($1, $2)
		 ON CONFLICT (content_hash) DO NOTHING`,
		hash, payload,
	); err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "insert blob", err).
			WithDetails(map[string]any{"operation": "put"})
	}

	createdAt := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshot_versions (store_id, version, content_hash, created_at, parents, tags)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		storeID, nextVersion, hash, createdAt, parentsJSON, opts.Tags,
	); err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "insert version", err).
			WithDetails(map[string]any{"operation": "put"})
	}

	if err := tx.Commit(ctx); err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "commit tx", err).
			WithDetails(map[string]any{"operation": "put"})
	}

	return models.SnapshotMeta{
		StoreID:     storeID,
		Version:     nextVersion,
		CreatedAt:   createdAt,
		ContentHash: hash,
		Parents:     opts.Parents,
		Tags:        opts.Tags,
	}, nil
}

// GetLatest returns the highest-version snapshot for storeID.
func (s *Store) GetLatest(ctx context.Context, storeID string) (models.SnapshotMeta, []byte, error) {
	return s.get(ctx, `
		SELECT sv.store_id, sv.version, sv.content_hash, sv.created_at, sv.parents, sv.tags, sb.data
		FROM snapshot_versions sv
		JOIN snapshot_blobs sb ON sb.content_hash = sv.content_hash
		WHERE sv.store_id = $1
		ORDER BY sv.version DESC
		LIMIT 1`, storeID)
}

// GetVersion returns a specific version of storeID.
func (s *Store) GetVersion(ctx context.Context, storeID string, version int64) (models.SnapshotMeta, []byte, error) {
	return s.get(ctx, `
		SELECT sv.store_id, sv.version, sv.content_hash, sv.created_at, sv.parents, sv.tags, sb.data
		FROM snapshot_versions sv
		JOIN snapshot_blobs sb ON sb.content_hash = sv.content_hash
		WHERE sv.store_id = $1 AND sv.version = $2`, storeID, version)
}

func (s *Store) get(ctx context.Context, query string, args ...any) (models.SnapshotMeta, []byte, error) {
	var meta models.SnapshotMeta
	var parentsJSON []byte
	var data []byte

	err := s.db.QueryRow(ctx, query, args...).Scan(
		&meta.StoreID, &meta.Version, &meta.ContentHash, &meta.CreatedAt, &parentsJSON, &meta.Tags, &data,
	)
	if err == pgx.ErrNoRows {
		return models.SnapshotMeta{}, nil, ErrNotFound
	}
	if err != nil {
		return models.SnapshotMeta{}, nil, apperr.Wrap(apperr.KindStoreError, "query snapshot", err).
			WithDetails(map[string]any{"operation": "get"})
	}

	if len(parentsJSON) > 0 {
		if err := json.Unmarshal(parentsJSON, &meta.Parents); err != nil {
			return models.SnapshotMeta{}, nil, apperr.Wrap(apperr.KindParseError, "unmarshal parents", err).
				WithDetails(map[string]any{"operation": "get"})
		}
	}

	return meta, data, nil
}

// RawStoreID builds the raw/{platform}/{account_id} store-id grammar.
func RawStoreID(platform models.Platform, accountID string) string {
	return fmt.Sprintf("raw/%s/%s", platform, accountID)
}

// RawMetaStoreID builds the auxiliary raw/{platform}/{account_id}/meta
// store-id for platforms that carry a secondary meta block alongside
// their raw payload.
func RawMetaStoreID(platform models.Platform, accountID string) string {
	return fmt.Sprintf("raw/%s/%s/meta", platform, accountID)
}

// TimelineStoreID builds the timeline/{user_id} store-id grammar.
func TimelineStoreID(userID string) string {
	return fmt.Sprintf("timeline/%s", userID)
}
