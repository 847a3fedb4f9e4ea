package provider

// RawPayload is the sum type every adapter yields; the Normalizer
// dispatches on which field is non-nil.
type RawPayload struct {
	Platform    string
	CodeHost    *CodeHostRaw
	ShortFeed   *ShortFeedRaw
	Video       *VideoRaw
	LinkAgg     *LinkAggRaw
	MicroBlog   *MicroBlogRaw
	TaskTracker *TaskTrackerRaw
}

// CodeHostRaw is the code-host adapter's raw payload shape: per-repo
// commits and pull requests, plus rate-limit-relevant meta.
type CodeHostRaw struct {
	Meta  CodeHostMeta            `json:"meta"`
	Repos map[string]CodeHostRepo `json:"repos"`
}

type CodeHostMeta struct {
	Username     string   `json:"username"`
	Repositories []string `json:"repositories"`
}

type CodeHostRepo struct {
	Commits      []CodeHostCommit      `json:"commits"`
	PullRequests []CodeHostPullRequest `json:"pull_requests"`
}

type CodeHostCommit struct {
	SHA       string `json:"sha"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Files     int    `json:"files_changed"`
	Branch    string `json:"branch"`
	URL       string `json:"url"`
}

type CodeHostPullRequest struct {
	Number     int      `json:"number"`
	State      string   `json:"state"` // open | closed | merged
	Title      string   `json:"title"`
	Timestamp  string   `json:"timestamp"`
	CommitSHAs []string `json:"commit_shas"`
	URL        string   `json:"url"`
}

// ShortFeedRaw is the short-form feed adapter's raw payload: up to 50
// author posts with counts and media references.
type ShortFeedRaw struct {
	Posts []ShortFeedPost `json:"posts"`
}

type ShortFeedPost struct {
	URI          string   `json:"uri"`
	Body         string   `json:"body"`
	Timestamp    string   `json:"timestamp"`
	LikeCount    int      `json:"like_count"`
	CommentCount int      `json:"comment_count"`
	RepostCount  int      `json:"repost_count"`
	MediaURLs    []string `json:"media_urls"`
	URL          string   `json:"url"`
}

// VideoRaw is the video adapter's raw payload: up to 50 uploads-playlist
// items with snippet metadata and the best-available thumbnail.
type VideoRaw struct {
	Videos []VideoItem `json:"videos"`
}

type VideoItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Timestamp    string `json:"timestamp"`
	ThumbnailURL string `json:"thumbnail_url"`
	DurationSec  int    `json:"duration_seconds"`
	ViewCount    int64  `json:"view_count"`
	URL          string `json:"url"`
}

// LinkAggRaw is the link-aggregator adapter's raw payload: posts, comments,
// and an auxiliary meta block (karma, active subreddits).
type LinkAggRaw struct {
	Posts    []LinkAggPost    `json:"posts"`
	Comments []LinkAggComment `json:"comments"`
	Meta     LinkAggMeta      `json:"meta"`
}

type LinkAggPost struct {
	ID        string `json:"id"`
	Subreddit string `json:"subreddit"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

type LinkAggComment struct {
	ID        string `json:"id"`
	ParentURI string `json:"parent_uri"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

type LinkAggMeta struct {
	Karma            int      `json:"karma"`
	ActiveSubreddits []string `json:"active_subreddits"`
}

// MicroBlogRaw is the micro-blog adapter's raw payload: recent tweets with
// public metrics.
type MicroBlogRaw struct {
	Posts []MicroBlogPost `json:"posts"`
}

type MicroBlogPost struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	Timestamp   string `json:"timestamp"`
	LikeCount   int    `json:"like_count"`
	RepostCount int    `json:"repost_count"`
	ReplyCount  int    `json:"reply_count"`
	URL         string `json:"url"`
}

// TaskTrackerRaw is the task tracker adapter's raw payload.
type TaskTrackerRaw struct {
	Tasks []TaskItem `json:"tasks"`
}

type TaskItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Board     string `json:"board"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}
