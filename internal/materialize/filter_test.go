package materialize

import (
	"testing"

	"github.com/pulsetrail/aggregator/internal/models"
)

func snapshotFixture() models.TimelineSnapshot {
	return models.TimelineSnapshot{
		UserID: "u1",
		Groups: []models.DateGroup{
			{
				Date: "2024-01-16",
				Items: []any{
					models.TimelineItem{ID: "1", Title: "fix bug", Payload: models.CommitPayload{Repo: "alice/x"}},
					models.TimelineItem{ID: "2", Title: "hello world", Payload: models.PostPayload{Subreddit: "golang"}},
				},
			},
			{
				Date: "2024-01-15",
				Items: []any{
					models.TimelineItem{ID: "3", Title: "add feature", Payload: models.CommitPayload{Repo: "alice/y"}},
				},
			},
		},
	}
}

// TestFilterForProfileIncludeRule checks the profile-scoped read path: an
// include filter keeps only matching items and drops now-empty DateGroups.
func TestFilterForProfileIncludeRule(t *testing.T) {
	filters := []models.ProfileFilter{
		{Type: models.FilterInclude, Key: models.FilterKeyRepo, Value: "alice/x"},
	}

	out := FilterForProfile(snapshotFixture(), filters, nil, Query{})

	if len(out.Groups) != 1 {
		t.Fatalf("expected 1 surviving date group, got %d", len(out.Groups))
	}
	if out.Groups[0].Date != "2024-01-16" {
		t.Fatalf("expected the 01-16 group to survive, got %s", out.Groups[0].Date)
	}
	if len(out.Groups[0].Items) != 1 {
		t.Fatalf("expected the non-matching post to be dropped, got %d items", len(out.Groups[0].Items))
	}
}

// TestFilterForProfileExcludeRule checks that an exclude rule wins even when
// no include rule is present.
func TestFilterForProfileExcludeRule(t *testing.T) {
	filters := []models.ProfileFilter{
		{Type: models.FilterExclude, Key: models.FilterKeyKeyword, Value: "bug"},
	}

	out := FilterForProfile(snapshotFixture(), filters, nil, Query{})

	for _, dg := range out.Groups {
		for _, raw := range dg.Items {
			item, ok := raw.(models.TimelineItem)
			if ok && item.ID == "1" {
				t.Fatal("expected the excluded item to be dropped")
			}
		}
	}
}

// TestFilterForProfileQueryWindow checks the Before cursor and Limit bound
// together restrict which DateGroups survive.
func TestFilterForProfileQueryWindow(t *testing.T) {
	out := FilterForProfile(snapshotFixture(), nil, nil, Query{Before: "2024-01-16", Limit: 1})

	if len(out.Groups) != 1 {
		t.Fatalf("expected 1 date group before the cursor, got %d", len(out.Groups))
	}
	if out.Groups[0].Date != "2024-01-15" {
		t.Fatalf("expected the 01-15 group, got %s", out.Groups[0].Date)
	}
}

// TestFilterForProfileHiddenHandle checks that a visibility override drops
// every item stamped with the hidden account's handle even when no
// ProfileFilter rule matches it.
func TestFilterForProfileHiddenHandle(t *testing.T) {
	snap := models.TimelineSnapshot{
		UserID: "u1",
		Groups: []models.DateGroup{
			{
				Date: "2024-01-16",
				Items: []any{
					models.TimelineItem{ID: "1", AccountHandle: "alice", Payload: models.PostPayload{}},
					models.TimelineItem{ID: "2", AccountHandle: "bob", Payload: models.PostPayload{}},
				},
			},
		},
	}

	out := FilterForProfile(snap, nil, map[string]struct{}{"alice": {}}, Query{})

	if len(out.Groups) != 1 || len(out.Groups[0].Items) != 1 {
		t.Fatalf("expected exactly one surviving item, got %+v", out.Groups)
	}
	item := out.Groups[0].Items[0].(models.TimelineItem)
	if item.ID != "2" {
		t.Fatalf("expected the hidden account's item to be dropped, kept %s", item.ID)
	}
}

func TestWindowByDateInclusiveBoundsFilterFile(t *testing.T) {
	out := WindowByDate(snapshotFixture(), "2024-01-15", "2024-01-15")
	if len(out.Groups) != 1 || out.Groups[0].Date != "2024-01-15" {
		t.Fatalf("expected only the 01-15 group, got %+v", out.Groups)
	}
}
