// Package group implements the Grouper/Deduper: it folds same-repo
// same-day commits into CommitGroups, removes commits already attached to
// a merged pull request, and re-partitions the result into date-ordered
// buckets.
package group

import (
	"sort"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

// Group runs the four-step grouping algorithm over a heterogeneous set of
// normalized items and returns date buckets ordered newest-date-first. It
// is pure and idempotent: Group(flatten(Group(items))) == Group(items).
func Group(items []models.TimelineItem) []models.DateGroup {
	commits, rest := splitCommits(items)
	mergedSHAs := mergedPullRequestSHAs(rest)
	commits = dropAttachedCommits(commits, mergedSHAs)
	commitGroups := partitionCommits(commits)

	entries := make([]entry, 0, len(commitGroups)+len(rest))
	for _, cg := range commitGroups {
		entries = append(entries, entry{timestamp: cg.Timestamp(), group: cg, isGroup: true})
	}
	for _, item := range rest {
		entries = append(entries, entry{timestamp: item.ParsedAt, item: item})
	}

	sortEntries(entries)
	return partitionByDate(entries)
}

// entry is a sortable wrapper around either a CommitGroup or a plain
// TimelineItem, carrying the tie-break fields the item itself may lack
// (a CommitGroup has no platform/type/id of its own).
type entry struct {
	timestamp time.Time
	item      models.TimelineItem
	group     models.CommitGroup
	isGroup   bool
}

func splitCommits(items []models.TimelineItem) (commits, rest []models.TimelineItem) {
	for _, item := range items {
		if item.Type == models.ItemCommit {
			commits = append(commits, item)
		} else {
			rest = append(rest, item)
		}
	}
	return commits, rest
}

// mergedPullRequestSHAs collects every commit sha attached to a merged
// pull request.
func mergedPullRequestSHAs(rest []models.TimelineItem) map[string]struct{} {
	shas := make(map[string]struct{})
	for _, item := range rest {
		if item.Type != models.ItemPullRequest {
			continue
		}
		pr, ok := item.Payload.(models.PullRequestPayload)
		if !ok || !pr.Merged {
			continue
		}
		for _, sha := range pr.CommitSHAs {
			shas[truncateSHA(sha)] = struct{}{}
		}
	}
	return shas
}

func dropAttachedCommits(commits []models.TimelineItem, mergedSHAs map[string]struct{}) []models.TimelineItem {
	out := make([]models.TimelineItem, 0, len(commits))
	for _, c := range commits {
		payload, ok := c.Payload.(models.CommitPayload)
		if !ok {
			out = append(out, c)
			continue
		}
		if _, attached := mergedSHAs[truncateSHA(payload.SHA)]; attached {
			continue
		}
		out = append(out, c)
	}
	return out
}

func truncateSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

// partitionCommits implements step 1: partition by (repo, branch, date);
// each partition's commits are sorted descending by timestamp and totals
// are summed.
func partitionCommits(commits []models.TimelineItem) []models.CommitGroup {
	type key struct {
		repo, branch, date string
	}
	buckets := make(map[key][]models.TimelineItem)
	order := make([]key, 0)

	for _, c := range commits {
		payload, ok := c.Payload.(models.CommitPayload)
		if !ok {
			continue
		}
		date := c.ParsedAt.UTC().Format("2006-01-02")
		k := key{repo: payload.Repo, branch: payload.Branch, date: date}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], c)
	}

	groups := make([]models.CommitGroup, 0, len(order))
	for _, k := range order {
		bucketCommits := buckets[k]
		sort.SliceStable(bucketCommits, func(i, j int) bool {
			return bucketCommits[i].ParsedAt.After(bucketCommits[j].ParsedAt)
		})

		var additions, deletions, files int
		for _, c := range bucketCommits {
			payload := c.Payload.(models.CommitPayload)
			additions += payload.Additions
			deletions += payload.Deletions
			files += payload.Files
		}

		groups = append(groups, models.CommitGroup{
			Repo:              k.repo,
			Branch:            k.branch,
			Date:              k.date,
			Commits:           bucketCommits,
			TotalAdditions:    additions,
			TotalDeletions:    deletions,
			TotalFilesChanged: files,
		})
	}
	return groups
}

// sortEntries orders descending by timestamp, ties broken by
// (platform, type, id) lexicographic order. A CommitGroup entry ties as a
// code-host commit whose id is "{repo}/{date}".
func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.timestamp.Equal(b.timestamp) {
			return a.timestamp.After(b.timestamp)
		}
		return tieKey(a) < tieKey(b)
	})
}

func tieKey(e entry) string {
	if e.isGroup {
		return string(models.PlatformCodeHost) + ":" + string(models.ItemCommit) + ":" + e.group.Repo + "/" + e.group.Date
	}
	return string(e.item.Platform) + ":" + string(e.item.Type) + ":" + e.item.ID
}

// partitionByDate implements step 4: re-partition the sorted entries by
// calendar date, newest-date-first, each bucket preserving the incoming
// (already timestamp-sorted) order.
func partitionByDate(entries []entry) []models.DateGroup {
	order := make([]string, 0)
	buckets := make(map[string][]any)

	for _, e := range entries {
		date := e.timestamp.UTC().Format("2006-01-02")
		if e.isGroup {
			date = e.group.Date
		}
		if _, seen := buckets[date]; !seen {
			order = append(order, date)
		}
		if e.isGroup {
			buckets[date] = append(buckets[date], e.group)
		} else {
			buckets[date] = append(buckets[date], e.item)
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i] > order[j] })

	groups := make([]models.DateGroup, 0, len(order))
	for _, date := range order {
		groups = append(groups, models.DateGroup{Date: date, Items: buckets[date]})
	}
	return groups
}
