// Package normalize converts each platform's raw payload into the common
// []TimelineItem shape: a deterministic pure function with stable ids and
// truncated titles.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

// Normalize dispatches on the populated field of raw and returns the
// platform's TimelineItems. It is a pure function: called twice with the
// same input it returns identical output.
func Normalize(platform models.Platform, raw provider.RawPayload) ([]models.TimelineItem, error) {
	switch platform {
	case models.PlatformCodeHost:
		if raw.CodeHost == nil {
			return nil, apperr.New(apperr.KindParseError, "missing code-host payload")
		}
		return normalizeCodeHost(*raw.CodeHost), nil
	case models.PlatformShortFeed:
		if raw.ShortFeed == nil {
			return nil, apperr.New(apperr.KindParseError, "missing short-feed payload")
		}
		return normalizeShortFeed(*raw.ShortFeed), nil
	case models.PlatformVideo:
		if raw.Video == nil {
			return nil, apperr.New(apperr.KindParseError, "missing video payload")
		}
		return normalizeVideo(*raw.Video), nil
	case models.PlatformLinkAgg:
		if raw.LinkAgg == nil {
			return nil, apperr.New(apperr.KindParseError, "missing link-aggregator payload")
		}
		return normalizeLinkAgg(*raw.LinkAgg), nil
	case models.PlatformMicroBlog:
		if raw.MicroBlog == nil {
			return nil, apperr.New(apperr.KindParseError, "missing micro-blog payload")
		}
		return normalizeMicroBlog(*raw.MicroBlog), nil
	case models.PlatformTaskTracker:
		if raw.TaskTracker == nil {
			return nil, apperr.New(apperr.KindParseError, "missing task-tracker payload")
		}
		return normalizeTaskTracker(*raw.TaskTracker), nil
	default:
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("unknown platform %q", platform))
	}
}

// itemID builds the "{platform}:{type}:{stable-key}" id grammar.
func itemID(platform models.Platform, t models.ItemType, stableKey string) string {
	return fmt.Sprintf("%s:%s:%s", platform, t, stableKey)
}

// firstLine returns the text up to (excluding) the first newline.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// truncate truncates s to at most max runes total, appending "…" when
// truncated: the ellipsis counts against max, so only max-1 runes of s are
// kept ahead of it.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func commitTitle(message string) string {
	return truncate(firstLine(message), 72)
}

func postTitle(body string) string {
	return truncate(firstLine(body), 100)
}

// parseTimestamp best-effort parses an ISO-8601 timestamp for ordering.
// The original string is always preserved separately and never rewritten.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// truncateSHA returns the commit sha truncated to 7 characters, the stable
// key the id grammar uses for commits.
func truncateSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}
