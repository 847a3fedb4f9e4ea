package materialize

import (
	"strings"

	"github.com/pulsetrail/aggregator/internal/models"
)

// Query bounds a profile-scoped timeline read: Limit caps the number of
// returned DateGroups (0 = unbounded), Before restricts to dates strictly
// earlier than the given YYYY-MM-DD cursor (empty = unbounded).
type Query struct {
	Limit  int
	Before string
}

// FilterForProfile applies ProfileFilter include/exclude rules, an
// account-handle visibility override set, and a Query window to a
// TimelineSnapshot. It is a pure, deterministic read-path transform: it
// never writes a new snapshot.
func FilterForProfile(snap models.TimelineSnapshot, filters []models.ProfileFilter, hiddenHandles map[string]struct{}, q Query) models.TimelineSnapshot {
	includes, excludes := splitFilters(filters)

	out := models.TimelineSnapshot{UserID: snap.UserID}
	for _, dg := range snap.Groups {
		if q.Before != "" && dg.Date >= q.Before {
			continue
		}

		var kept []any
		for _, raw := range dg.Items {
			if !passesFilters(raw, includes, excludes, hiddenHandles) {
				continue
			}
			kept = append(kept, raw)
		}
		if len(kept) == 0 {
			continue
		}
		out.Groups = append(out.Groups, models.DateGroup{Date: dg.Date, Items: kept})

		if q.Limit > 0 && len(out.Groups) >= q.Limit {
			break
		}
	}
	return out
}

// WindowByDate implements the inbound `from`/`to` date-bound filter: both
// bounds inclusive, empty means unbounded.
func WindowByDate(snap models.TimelineSnapshot, from, to string) models.TimelineSnapshot {
	out := models.TimelineSnapshot{UserID: snap.UserID}
	for _, dg := range snap.Groups {
		if from != "" && dg.Date < from {
			continue
		}
		if to != "" && dg.Date > to {
			continue
		}
		out.Groups = append(out.Groups, dg)
	}
	return out
}

func splitFilters(filters []models.ProfileFilter) (includes, excludes []models.ProfileFilter) {
	for _, f := range filters {
		switch f.Type {
		case models.FilterInclude:
			includes = append(includes, f)
		case models.FilterExclude:
			excludes = append(excludes, f)
		}
	}
	return includes, excludes
}

func passesFilters(raw any, includes, excludes []models.ProfileFilter, hiddenHandles map[string]struct{}) bool {
	for _, f := range excludes {
		if matches(raw, f) {
			return false
		}
	}
	if len(includes) > 0 {
		matched := false
		for _, f := range includes {
			if matches(raw, f) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if handle := accountHandle(raw); handle != "" {
		if _, hidden := hiddenHandles[handle]; hidden {
			return false
		}
	}
	return true
}

// matches checks a single ProfileFilter predicate against either a plain
// TimelineItem or a CommitGroup (whose repo lives on the group itself).
func matches(raw any, f models.ProfileFilter) bool {
	switch f.Key {
	case models.FilterKeyRepo:
		return repoOf(raw) == f.Value
	case models.FilterKeySubreddit:
		return subredditOf(raw) == f.Value
	case models.FilterKeyKeyword:
		return strings.Contains(strings.ToLower(titleOf(raw)), strings.ToLower(f.Value))
	case models.FilterKeyAccountHandle:
		return accountHandle(raw) == f.Value
	default:
		return false
	}
}

func repoOf(raw any) string {
	switch v := raw.(type) {
	case models.CommitGroup:
		return v.Repo
	case models.TimelineItem:
		switch p := v.Payload.(type) {
		case models.CommitPayload:
			return p.Repo
		case models.PullRequestPayload:
			return p.Repo
		}
	}
	return ""
}

func subredditOf(raw any) string {
	item, ok := raw.(models.TimelineItem)
	if !ok {
		return ""
	}
	if p, ok := item.Payload.(models.PostPayload); ok {
		return p.Subreddit
	}
	return ""
}

func titleOf(raw any) string {
	switch v := raw.(type) {
	case models.TimelineItem:
		return v.Title
	case models.CommitGroup:
		return v.Repo
	}
	return ""
}

// accountHandle resolves the source-account handle the Materializer
// stamped onto each item. A CommitGroup carries no handle of its own, so
// it answers with its first commit's.
func accountHandle(raw any) string {
	switch v := raw.(type) {
	case models.TimelineItem:
		return v.AccountHandle
	case models.CommitGroup:
		if len(v.Commits) > 0 {
			return v.Commits[0].AccountHandle
		}
	}
	return ""
}
