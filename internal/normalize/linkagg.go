package normalize

import (
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

// normalizeLinkAgg converts posts and comments; the Meta block (karma,
// active subreddits) is auxiliary data the scheduler writes to a sibling
// meta store and is not part of the timeline item stream.
func normalizeLinkAgg(raw provider.LinkAggRaw) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(raw.Posts)+len(raw.Comments))

	for _, p := range raw.Posts {
		items = append(items, models.TimelineItem{
			ID:        itemID(models.PlatformLinkAgg, models.ItemPost, p.ID),
			Platform:  models.PlatformLinkAgg,
			Type:      models.ItemPost,
			Timestamp: p.Timestamp,
			ParsedAt:  parseTimestamp(p.Timestamp),
			Title:     postTitle(p.Body),
			URL:       p.URL,
			Payload: models.PostPayload{
				Type:      models.ItemPost,
				Body:      p.Body,
				Subreddit: p.Subreddit,
			},
		})
	}

	for _, c := range raw.Comments {
		items = append(items, models.TimelineItem{
			ID:        itemID(models.PlatformLinkAgg, models.ItemComment, c.ID),
			Platform:  models.PlatformLinkAgg,
			Type:      models.ItemComment,
			Timestamp: c.Timestamp,
			ParsedAt:  parseTimestamp(c.Timestamp),
			Title:     postTitle(c.Body),
			URL:       c.URL,
			Payload: models.CommentPayload{
				Type:   models.ItemComment,
				Body:   c.Body,
				Parent: c.ParentURI,
			},
		})
	}

	return items
}
