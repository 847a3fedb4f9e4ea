// Package video implements the video-platform adapter: paginates the
// uploads playlist up to 50 items and extracts snippet metadata plus the
// highest-available thumbnail URL.
package video

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

const DefaultBaseURL = "https://api.videoplatform.example"
const maxItems = 50

type Adapter struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformVideo }

type thumbnails struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
	Medium struct {
		URL string `json:"url"`
	} `json:"medium"`
	High struct {
		URL string `json:"url"`
	} `json:"high"`
	Maxres struct {
		URL string `json:"url"`
	} `json:"maxres"`
}

func (t thumbnails) highest() string {
	for _, u := range []string{t.Maxres.URL, t.High.URL, t.Medium.URL, t.Default.URL} {
		if u != "" {
			return u
		}
	}
	return ""
}

type playlistPage struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			PublishedAt string     `json:"publishedAt"`
			Thumbnails  thumbnails `json:"thumbnails"`
			ResourceID  struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
		ContentDetails struct {
			VideoID  string `json:"videoId"`
			Duration int    `json:"durationSeconds"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount int64 `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (a *Adapter) Fetch(ctx context.Context, token, playlistID string) (provider.RawPayload, provider.Envelope, error) {
	var videos []provider.VideoItem
	pageToken := ""

	for len(videos) < maxItems {
		query := url.Values{"playlistId": {playlistID}, "part": {"snippet,contentDetails,statistics"}, "maxResults": {"50"}}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		resp, err := a.client.GetJSON(ctx, "/playlistItems", token, query)
		if err != nil {
			return provider.RawPayload{}, provider.Envelope{}, provider.NetworkError(err)
		}
		body, err := httpclient.ReadAll(resp)
		if err != nil {
			return provider.RawPayload{}, provider.Envelope{}, provider.NetworkError(err)
		}
		if resp.StatusCode != 200 {
			return provider.RawPayload{}, provider.Envelope{}, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
		}

		var page playlistPage
		if err := json.Unmarshal(body, &page); err != nil {
			return provider.RawPayload{}, provider.Envelope{}, provider.ParseError("decode playlist page", err)
		}

		for _, item := range page.Items {
			id := item.ContentDetails.VideoID
			if id == "" {
				id = item.Snippet.ResourceID.VideoID
			}
			videos = append(videos, provider.VideoItem{
				ID:           id,
				Title:        item.Snippet.Title,
				Description:  item.Snippet.Description,
				Timestamp:    item.Snippet.PublishedAt,
				ThumbnailURL: item.Snippet.Thumbnails.highest(),
				DurationSec:  item.ContentDetails.Duration,
				ViewCount:    item.Statistics.ViewCount,
				URL:          "https://video.example/watch?v=" + id,
			})
			if len(videos) >= maxItems {
				break
			}
		}

		if page.NextPageToken == "" || len(page.Items) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	raw := provider.RawPayload{
		Platform: string(models.PlatformVideo),
		Video:    &provider.VideoRaw{Videos: videos},
	}
	return raw, provider.Envelope{}, nil
}
