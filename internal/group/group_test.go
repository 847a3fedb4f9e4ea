package group

import (
	"testing"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func commitItem(t *testing.T, sha, repo, branch, ts string) models.TimelineItem {
	parsed := mustParse(t, ts)
	return models.TimelineItem{
		ID:        "github:commit:" + sha,
		Platform:  models.PlatformCodeHost,
		Type:      models.ItemCommit,
		Timestamp: ts,
		ParsedAt:  parsed,
		Payload: models.CommitPayload{
			Type:      models.ItemCommit,
			Repo:      repo,
			Branch:    branch,
			SHA:       sha,
			Additions: 1,
			Deletions: 1,
			Files:     1,
		},
	}
}

func prItem(t *testing.T, repo string, number int, merged bool, shas []string, ts string) models.TimelineItem {
	parsed := mustParse(t, ts)
	return models.TimelineItem{
		ID:        "github:pull_request:sample",
		Platform:  models.PlatformCodeHost,
		Type:      models.ItemPullRequest,
		Timestamp: ts,
		ParsedAt:  parsed,
		Payload: models.PullRequestPayload{
			Type:       models.ItemPullRequest,
			Repo:       repo,
			Number:     number,
			Merged:     merged,
			CommitSHAs: shas,
		},
	}
}

func flatten(groups []models.DateGroup) []models.TimelineItem {
	var items []models.TimelineItem
	for _, g := range groups {
		for _, raw := range g.Items {
			if cg, ok := raw.(models.CommitGroup); ok {
				items = append(items, cg.Commits...)
				continue
			}
			items = append(items, raw.(models.TimelineItem))
		}
	}
	return items
}

func TestGroupPartitionsCommitsByRepoBranchDate(t *testing.T) {
	items := []models.TimelineItem{
		commitItem(t, "aaaaaaa", "alice/x", "main", "2024-01-15T10:00:00Z"),
		commitItem(t, "bbbbbbb", "alice/x", "main", "2024-01-15T09:00:00Z"),
	}
	groups := Group(items)
	if len(groups) != 1 {
		t.Fatalf("expected 1 date group, got %d", len(groups))
	}
	if groups[0].Date != "2024-01-15" {
		t.Fatalf("unexpected date: %s", groups[0].Date)
	}
	if len(groups[0].Items) != 1 {
		t.Fatalf("expected 1 commit group, got %d items", len(groups[0].Items))
	}
	cg, ok := groups[0].Items[0].(models.CommitGroup)
	if !ok {
		t.Fatalf("expected a CommitGroup, got %T", groups[0].Items[0])
	}
	if len(cg.Commits) != 2 {
		t.Fatalf("expected 2 commits in group, got %d", len(cg.Commits))
	}
	if cg.Commits[0].ID != "github:commit:aaaaaaa" {
		t.Fatalf("expected newest commit first, got %s", cg.Commits[0].ID)
	}
	if cg.TotalAdditions != 2 || cg.TotalDeletions != 2 || cg.TotalFilesChanged != 2 {
		t.Fatalf("unexpected totals: %+v", cg)
	}
}

// TestGroupPRDedup checks that a merged PR's commit_shas do not also
// surface as standalone top-level commit items.
func TestGroupPRDedup(t *testing.T) {
	items := []models.TimelineItem{
		prItem(t, "alice/x", 42, true, []string{"cccccc1", "cccccc2"}, "2024-01-15T11:00:00Z"),
		commitItem(t, "cccccc1", "alice/x", "main", "2024-01-15T10:30:00Z"),
		commitItem(t, "cccccc2", "alice/x", "main", "2024-01-15T10:00:00Z"),
	}
	groups := Group(items)

	for _, g := range groups {
		for _, raw := range g.Items {
			if _, isGroup := raw.(models.CommitGroup); isGroup {
				t.Fatalf("expected no standalone commit groups once PR commits are dropped, got %+v", raw)
			}
		}
	}

	foundPR := false
	for _, g := range groups {
		for _, raw := range g.Items {
			item, ok := raw.(models.TimelineItem)
			if !ok {
				continue
			}
			if item.Type == models.ItemPullRequest {
				foundPR = true
			}
			if item.Type == models.ItemCommit {
				t.Fatalf("unexpected standalone commit item survived dedup: %s", item.ID)
			}
		}
	}
	if !foundPR {
		t.Fatal("expected the pull_request item to survive grouping")
	}
}

func TestGroupIdempotent(t *testing.T) {
	items := []models.TimelineItem{
		commitItem(t, "aaaaaaa", "alice/x", "main", "2024-01-15T10:00:00Z"),
		commitItem(t, "bbbbbbb", "alice/x", "main", "2024-01-15T09:00:00Z"),
		prItem(t, "alice/x", 7, true, []string{"ddddddd"}, "2024-01-14T08:00:00Z"),
	}
	first := Group(items)
	second := Group(flatten(first))

	if len(first) != len(second) {
		t.Fatalf("date group count changed across re-grouping: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Date != second[i].Date {
			t.Fatalf("date mismatch at index %d: %s vs %s", i, first[i].Date, second[i].Date)
		}
		if len(first[i].Items) != len(second[i].Items) {
			t.Fatalf("item count mismatch on %s: %d vs %d", first[i].Date, len(first[i].Items), len(second[i].Items))
		}
	}
}

// TestGroupTieBreakIsStable pins the documented equal-timestamp ordering:
// ties break by (platform, type, id) lexicographic order, so repeated runs
// over the same input produce byte-identical output.
func TestGroupTieBreakIsStable(t *testing.T) {
	ts := "2024-01-15T10:00:00Z"
	parsed := mustParse(t, ts)
	post := func(platform models.Platform, id string) models.TimelineItem {
		return models.TimelineItem{
			ID:        string(platform) + ":post:" + id,
			Platform:  platform,
			Type:      models.ItemPost,
			Timestamp: ts,
			ParsedAt:  parsed,
			Payload:   models.PostPayload{Type: models.ItemPost},
		}
	}

	items := []models.TimelineItem{
		post(models.PlatformMicroBlog, "zzz"),
		post(models.PlatformLinkAgg, "bbb"),
		post(models.PlatformLinkAgg, "aaa"),
	}

	for run := 0; run < 5; run++ {
		groups := Group(items)
		if len(groups) != 1 || len(groups[0].Items) != 3 {
			t.Fatalf("unexpected shape: %+v", groups)
		}
		wantOrder := []string{"linkagg:post:aaa", "linkagg:post:bbb", "microblog:post:zzz"}
		for i, raw := range groups[0].Items {
			item := raw.(models.TimelineItem)
			if item.ID != wantOrder[i] {
				t.Fatalf("run %d: position %d: got %s want %s", run, i, item.ID, wantOrder[i])
			}
		}
	}
}

func TestGroupOrdersDateGroupsNewestFirst(t *testing.T) {
	items := []models.TimelineItem{
		commitItem(t, "aaaaaaa", "alice/x", "main", "2024-01-10T10:00:00Z"),
		commitItem(t, "bbbbbbb", "alice/x", "main", "2024-01-20T10:00:00Z"),
	}
	groups := Group(items)
	if len(groups) != 2 {
		t.Fatalf("expected 2 date groups, got %d", len(groups))
	}
	if groups[0].Date != "2024-01-20" || groups[1].Date != "2024-01-10" {
		t.Fatalf("expected newest-date-first ordering, got %s then %s", groups[0].Date, groups[1].Date)
	}
}
