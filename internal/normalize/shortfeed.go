package normalize

import (
	"strings"

	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

// uriTail returns the final "/"-delimited segment of a URI, the stable key
// for post-uri-addressed platforms.
func uriTail(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if idx := strings.LastIndexByte(uri, '/'); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}

func normalizeShortFeed(raw provider.ShortFeedRaw) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(raw.Posts))
	for _, p := range raw.Posts {
		key := uriTail(p.URI)
		items = append(items, models.TimelineItem{
			ID:        itemID(models.PlatformShortFeed, models.ItemPost, key),
			Platform:  models.PlatformShortFeed,
			Type:      models.ItemPost,
			Timestamp: p.Timestamp,
			ParsedAt:  parseTimestamp(p.Timestamp),
			Title:     postTitle(p.Body),
			URL:       p.URL,
			Payload: models.PostPayload{
				Type:         models.ItemPost,
				Body:         p.Body,
				LikeCount:    p.LikeCount,
				CommentCount: p.CommentCount,
				RepostCount:  p.RepostCount,
				MediaURLs:    p.MediaURLs,
			},
		})
	}
	return items
}
