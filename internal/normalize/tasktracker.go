package normalize

import (
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

func normalizeTaskTracker(raw provider.TaskTrackerRaw) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(raw.Tasks))
	for _, t := range raw.Tasks {
		items = append(items, models.TimelineItem{
			ID:        itemID(models.PlatformTaskTracker, models.ItemTask, t.ID),
			Platform:  models.PlatformTaskTracker,
			Type:      models.ItemTask,
			Timestamp: t.Timestamp,
			ParsedAt:  parseTimestamp(t.Timestamp),
			Title:     t.Title,
			URL:       t.URL,
			Payload: models.TaskPayload{
				Type:   models.ItemTask,
				Status: t.Status,
				Board:  t.Board,
			},
		})
	}
	return items
}
