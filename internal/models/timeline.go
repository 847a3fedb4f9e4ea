package models

import "time"

// TimelineItem is the common normalized activity record produced by the
// Normalizer. Timestamp is kept as the exact ISO-8601 string the provider
// returned, never rewritten; ParsedAt is a parse of that string used only
// for ordering/partitioning, never serialized back out in place of
// Timestamp.
type TimelineItem struct {
	ID        string    `json:"id"`
	Platform  Platform  `json:"platform"`
	Type      ItemType  `json:"type"`
	Timestamp string    `json:"timestamp"`
	ParsedAt  time.Time `json:"-"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	// AccountHandle is the PlatformHandle of the Account the item came
	// from, stamped by the Materializer so profile visibility overrides
	// can match items back to their source account at read time.
	AccountHandle string `json:"account_handle,omitempty"`
	Payload       any    `json:"payload"`
}

// CommitPayload is the type-tagged variant for ItemCommit.
type CommitPayload struct {
	Type      ItemType `json:"type"`
	Repo      string   `json:"repo"`
	Branch    string   `json:"branch"`
	SHA       string   `json:"sha"`
	FullSHA   string   `json:"full_sha"`
	Message   string   `json:"message"`
	Additions int      `json:"additions"`
	Deletions int      `json:"deletions"`
	Files     int      `json:"files_changed"`
}

// PullRequestPayload is the type-tagged variant for ItemPullRequest.
type PullRequestPayload struct {
	Type       ItemType `json:"type"`
	Repo       string   `json:"repo"`
	Number     int      `json:"number"`
	State      string   `json:"state"` // open | closed | merged
	Title      string   `json:"title"`
	Merged     bool     `json:"merged"`
	CommitSHAs []string `json:"commit_shas"`
}

// PostPayload is the type-tagged variant for ItemPost (short-form feed,
// link-aggregator, micro-blog).
type PostPayload struct {
	Type         ItemType `json:"type"`
	Body         string   `json:"body"`
	LikeCount    int      `json:"like_count"`
	CommentCount int      `json:"comment_count"`
	RepostCount  int      `json:"repost_count"`
	MediaURLs    []string `json:"media_urls,omitempty"`
	Subreddit    string   `json:"subreddit,omitempty"`
}

// CommentPayload is the type-tagged variant for ItemComment.
type CommentPayload struct {
	Type   ItemType `json:"type"`
	Body   string   `json:"body"`
	Parent string   `json:"parent_uri,omitempty"`
}

// VideoPayload is the type-tagged variant for ItemVideo.
type VideoPayload struct {
	Type         ItemType `json:"type"`
	Description  string   `json:"description,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	DurationSec  int      `json:"duration_seconds,omitempty"`
	ViewCount    int64    `json:"view_count,omitempty"`
}

// TaskPayload is the type-tagged variant for ItemTask.
type TaskPayload struct {
	Type   ItemType `json:"type"`
	Status string   `json:"status"`
	Board  string   `json:"board,omitempty"`
}

// CommitGroup folds same-repo same-day commits together.
type CommitGroup struct {
	Repo              string         `json:"repo"`
	Branch            string         `json:"branch"`
	Date              string         `json:"date"` // YYYY-MM-DD, UTC
	Commits           []TimelineItem `json:"commits"`
	TotalAdditions    int            `json:"total_additions"`
	TotalDeletions    int            `json:"total_deletions"`
	TotalFilesChanged int            `json:"total_files_changed"`
}

// Timestamp returns the group's effective sort timestamp: its first
// (latest) commit's timestamp, falling back to midnight UTC on Date.
func (g CommitGroup) Timestamp() time.Time {
	if len(g.Commits) > 0 {
		return g.Commits[0].ParsedAt
	}
	t, _ := time.Parse("2006-01-02", g.Date)
	return t
}

// DateGroup is the top-level bucket in a TimelineSnapshot, keyed by calendar
// date in UTC. Items holds a mix of TimelineItem and CommitGroup values,
// sorted descending by effective timestamp.
type DateGroup struct {
	Date  string `json:"date"`
	Items []any  `json:"items"`
}

// TimelineSnapshot is the materialized per-user timeline: a
// Snapshot Store entry at timeline/{user_id}.
type TimelineSnapshot struct {
	UserID string      `json:"user_id"`
	Groups []DateGroup `json:"groups"`
}
