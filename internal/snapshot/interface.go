package snapshot

import (
	"context"

	"github.com/pulsetrail/aggregator/internal/models"
)

// Interface is the Snapshot Store contract consumed by the rest of the
// pipeline, satisfied by both the Postgres-backed Store and MemoryStore
// (used in tests).
type Interface interface {
	Put(ctx context.Context, storeID string, payload []byte, opts PutOptions) (models.SnapshotMeta, error)
	GetLatest(ctx context.Context, storeID string) (models.SnapshotMeta, []byte, error)
	GetVersion(ctx context.Context, storeID string, version int64) (models.SnapshotMeta, []byte, error)
}

var _ Interface = (*Store)(nil)
var _ Interface = (*MemoryStore)(nil)
