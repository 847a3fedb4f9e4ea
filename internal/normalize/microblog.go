package normalize

import (
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

func normalizeMicroBlog(raw provider.MicroBlogRaw) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(raw.Posts))
	for _, p := range raw.Posts {
		items = append(items, models.TimelineItem{
			ID:        itemID(models.PlatformMicroBlog, models.ItemPost, p.ID),
			Platform:  models.PlatformMicroBlog,
			Type:      models.ItemPost,
			Timestamp: p.Timestamp,
			ParsedAt:  parseTimestamp(p.Timestamp),
			Title:     postTitle(p.Body),
			URL:       p.URL,
			Payload: models.PostPayload{
				Type:         models.ItemPost,
				Body:         p.Body,
				LikeCount:    p.LikeCount,
				RepostCount:  p.RepostCount,
				CommentCount: p.ReplyCount,
			},
		})
	}
	return items
}
