package normalize

import (
	"fmt"
	"sort"

	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

func normalizeCodeHost(raw provider.CodeHostRaw) []models.TimelineItem {
	var items []models.TimelineItem

	// raw.Repos is a Go map: range order is randomized per-process, so the
	// repo names are sorted here to keep normalize deterministic across
	// multiple repos in one payload.
	repoNames := make([]string, 0, len(raw.Repos))
	for repoName := range raw.Repos {
		repoNames = append(repoNames, repoName)
	}
	sort.Strings(repoNames)

	for _, repoName := range repoNames {
		repo := raw.Repos[repoName]
		for _, c := range repo.Commits {
			sha7 := truncateSHA(c.SHA)
			items = append(items, models.TimelineItem{
				ID:        itemID(models.PlatformCodeHost, models.ItemCommit, sha7),
				Platform:  models.PlatformCodeHost,
				Type:      models.ItemCommit,
				Timestamp: c.Timestamp,
				ParsedAt:  parseTimestamp(c.Timestamp),
				Title:     commitTitle(c.Message),
				URL:       c.URL,
				Payload: models.CommitPayload{
					Type:      models.ItemCommit,
					Repo:      repoName,
					Branch:    c.Branch,
					SHA:       sha7,
					FullSHA:   c.SHA,
					Message:   c.Message,
					Additions: c.Additions,
					Deletions: c.Deletions,
					Files:     c.Files,
				},
			})
		}

		for _, pr := range repo.PullRequests {
			stableKey := fmt.Sprintf("%s#%d", repoName, pr.Number)
			items = append(items, models.TimelineItem{
				ID:        itemID(models.PlatformCodeHost, models.ItemPullRequest, stableKey),
				Platform:  models.PlatformCodeHost,
				Type:      models.ItemPullRequest,
				Timestamp: pr.Timestamp,
				ParsedAt:  parseTimestamp(pr.Timestamp),
				Title:     pr.Title,
				URL:       pr.URL,
				Payload: models.PullRequestPayload{
					Type:       models.ItemPullRequest,
					Repo:       repoName,
					Number:     pr.Number,
					State:      pr.State,
					Title:      pr.Title,
					Merged:     pr.State == "merged",
					CommitSHAs: pr.CommitSHAs,
				},
			})
		}
	}

	return items
}
