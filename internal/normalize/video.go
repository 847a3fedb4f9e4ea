package normalize

import (
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

func normalizeVideo(raw provider.VideoRaw) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(raw.Videos))
	for _, v := range raw.Videos {
		items = append(items, models.TimelineItem{
			ID:        itemID(models.PlatformVideo, models.ItemVideo, v.ID),
			Platform:  models.PlatformVideo,
			Type:      models.ItemVideo,
			Timestamp: v.Timestamp,
			ParsedAt:  parseTimestamp(v.Timestamp),
			Title:     v.Title,
			URL:       v.URL,
			Payload: models.VideoPayload{
				Type:         models.ItemVideo,
				Description:  v.Description,
				ThumbnailURL: v.ThumbnailURL,
				DurationSec:  v.DurationSec,
				ViewCount:    v.ViewCount,
			},
		})
	}
	return items
}
