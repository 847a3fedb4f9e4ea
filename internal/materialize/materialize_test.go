package materialize

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
	"github.com/pulsetrail/aggregator/internal/snapshot"
)

func seedCodeHostRaw(t *testing.T, store *snapshot.MemoryStore, storeID string) {
	t.Helper()
	raw := provider.RawPayload{
		Platform: "github",
		CodeHost: &provider.CodeHostRaw{
			Repos: map[string]provider.CodeHostRepo{
				"alice/x": {
					Commits: []provider.CodeHostCommit{
						{SHA: "aaaaaaa", Message: "first", Timestamp: "2024-01-15T10:00:00Z"},
						{SHA: "bbbbbbb", Message: "second", Timestamp: "2024-01-15T09:00:00Z"},
					},
				},
			},
		},
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(context.Background(), storeID, payload, snapshot.PutOptions{}); err != nil {
		t.Fatal(err)
	}
}

// TestMaterializeSingleAccountHappyPath folds one account's raw snapshot
// into a fresh timeline with full parent lineage.
func TestMaterializeSingleAccountHappyPath(t *testing.T) {
	store := snapshot.NewMemoryStore()
	storeID := snapshot.RawStoreID(models.PlatformCodeHost, "acct1")
	seedCodeHostRaw(t, store, storeID)

	meta, err := Materialize(context.Background(), store, "user1", []AccountRef{
		{AccountID: "acct1", Platform: models.PlatformCodeHost},
	})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Version != 1 {
		t.Fatalf("expected version 1, got %d", meta.Version)
	}
	if len(meta.Parents) != 1 || meta.Parents[0].StoreID != storeID || meta.Parents[0].Role != models.RoleSource {
		t.Fatalf("unexpected parents: %+v", meta.Parents)
	}

	_, data, err := store.GetLatest(context.Background(), snapshot.TimelineStoreID("user1"))
	if err != nil {
		t.Fatal(err)
	}
	var snap models.TimelineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Groups) != 1 || snap.Groups[0].Date != "2024-01-15" {
		t.Fatalf("unexpected groups: %+v", snap.Groups)
	}
	if len(snap.Groups[0].Items) != 1 {
		t.Fatalf("expected one commit group, got %d items", len(snap.Groups[0].Items))
	}
}

func TestMaterializeSkipsAccountsWithNoSnapshot(t *testing.T) {
	store := snapshot.NewMemoryStore()
	meta, err := Materialize(context.Background(), store, "user1", []AccountRef{
		{AccountID: "missing", Platform: models.PlatformCodeHost},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Parents) != 0 {
		t.Fatalf("expected no parents for accounts with no raw snapshot, got %+v", meta.Parents)
	}
}

func TestWindowByDateInclusiveBounds(t *testing.T) {
	snap := models.TimelineSnapshot{
		UserID: "u1",
		Groups: []models.DateGroup{
			{Date: "2024-01-25"},
			{Date: "2024-01-15"},
			{Date: "2024-01-05"},
		},
	}
	filtered := WindowByDate(snap, "2024-01-10", "2024-01-20")
	if len(filtered.Groups) != 1 || filtered.Groups[0].Date != "2024-01-15" {
		t.Fatalf("unexpected window result: %+v", filtered.Groups)
	}
}
