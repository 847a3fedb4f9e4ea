// Package shortfeed implements the short-form social feed adapter:
// paginates the author's feed up to 50 items.
package shortfeed

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

const DefaultBaseURL = "https://api.shortfeed.example"
const maxItems = 50
const pageSize = 25

type Adapter struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformShortFeed }

type feedPage struct {
	Cursor string `json:"cursor"`
	Feed   []struct {
		Post struct {
			URI         string `json:"uri"`
			Text        string `json:"text"`
			CreatedAt   string `json:"created_at"`
			LikeCount   int    `json:"like_count"`
			ReplyCount  int    `json:"reply_count"`
			RepostCount int    `json:"repost_count"`
			Embed       struct {
				MediaURLs []string `json:"media_urls"`
			} `json:"embed"`
			URL string `json:"url"`
		} `json:"post"`
	} `json:"feed"`
}

func (a *Adapter) Fetch(ctx context.Context, token, actor string) (provider.RawPayload, provider.Envelope, error) {
	var posts []provider.ShortFeedPost
	cursor := ""

	for len(posts) < maxItems {
		query := url.Values{"actor": {actor}, "limit": {strconv.Itoa(pageSize)}}
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		resp, err := a.client.GetJSON(ctx, "/feed/author", token, query)
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

		var page feedPage
		if err := json.Unmarshal(body, &page); err != nil {
			return provider.RawPayload{}, provider.Envelope{}, provider.ParseError("decode feed page", err)
		}

		for _, item := range page.Feed {
			posts = append(posts, provider.ShortFeedPost{
				URI:          item.Post.URI,
				Body:         item.Post.Text,
				Timestamp:    item.Post.CreatedAt,
				LikeCount:    item.Post.LikeCount,
				CommentCount: item.Post.ReplyCount,
				RepostCount:  item.Post.RepostCount,
				MediaURLs:    item.Post.Embed.MediaURLs,
				URL:          item.Post.URL,
			})
			if len(posts) >= maxItems {
				break
			}
		}

		if page.Cursor == "" || len(page.Feed) == 0 {
			break
		}
		cursor = page.Cursor
	}

	raw := provider.RawPayload{
		Platform:  string(models.PlatformShortFeed),
		ShortFeed: &provider.ShortFeedRaw{Posts: posts},
	}
	return raw, provider.Envelope{}, nil
}
