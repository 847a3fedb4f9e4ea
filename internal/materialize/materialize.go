// Package materialize assembles per-user timelines: it gathers the latest
// raw snapshot of every active account, normalizes and groups them, and
// writes the user's timeline snapshot with full parent lineage.
package materialize

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/group"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/normalize"
	"github.com/pulsetrail/aggregator/internal/provider"
	"github.com/pulsetrail/aggregator/internal/snapshot"
)

// AccountRef names one account to fold into a user's timeline. Handle is
// the account's PlatformHandle, stamped onto every normalized item so the
// profile read path can match items back to their source account.
type AccountRef struct {
	AccountID string
	Platform  models.Platform
	Handle    string
}

// Materialize reads every account's latest raw snapshot (skipping accounts
// with none), normalizes and groups the union, and writes
// timeline/{user_id} with source parents for every raw snapshot that
// contributed.
func Materialize(ctx context.Context, store snapshot.Interface, userID string, accounts []AccountRef) (models.SnapshotMeta, error) {
	var allItems []models.TimelineItem
	var parents []models.SnapshotParent

	for _, acct := range accounts {
		storeID := snapshot.RawStoreID(acct.Platform, acct.AccountID)
		meta, data, err := store.GetLatest(ctx, storeID)
		if err != nil {
			if err == snapshot.ErrNotFound {
				continue
			}
			return models.SnapshotMeta{}, err
		}

		var raw provider.RawPayload
		if err := json.Unmarshal(data, &raw); err != nil {
			return models.SnapshotMeta{}, apperr.Wrap(apperr.KindParseError, "unmarshal raw snapshot", err).
				WithDetails(map[string]any{"store_id": storeID})
		}

		items, err := normalize.Normalize(acct.Platform, raw)
		if err != nil {
			return models.SnapshotMeta{}, err
		}
		for i := range items {
			items[i].AccountHandle = acct.Handle
		}
		allItems = append(allItems, items...)

		parents = append(parents, models.SnapshotParent{
			StoreID: storeID,
			Version: meta.Version,
			Role:    models.RoleSource,
		})
	}

	groups := group.Group(allItems)

	snap := models.TimelineSnapshot{UserID: userID, Groups: groups}
	payload, err := json.Marshal(snap)
	if err != nil {
		return models.SnapshotMeta{}, apperr.Wrap(apperr.KindStoreError, "marshal timeline snapshot", err)
	}

	sortParents(parents)

	return store.Put(ctx, snapshot.TimelineStoreID(userID), payload, snapshot.PutOptions{
		Tags:    []string{"user:" + userID},
		Parents: parents,
	})
}

func sortParents(parents []models.SnapshotParent) {
	sort.SliceStable(parents, func(i, j int) bool {
		if parents[i].StoreID != parents[j].StoreID {
			return parents[i].StoreID < parents[j].StoreID
		}
		return parents[i].Version < parents[j].Version
	})
}
