// Package microblog implements the micro-blogging adapter: fetches recent
// author posts with public engagement metrics.
package microblog

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

const DefaultBaseURL = "https://api.microblog.example/2"
const maxItems = 50

type Adapter struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformMicroBlog }

type tweetsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (a *Adapter) Fetch(ctx context.Context, token, userID string) (provider.RawPayload, provider.Envelope, error) {
	resp, err := a.client.GetJSON(ctx, "/users/"+userID+"/tweets", token, url.Values{
		"max_results":  {"100"},
		"tweet.fields": {"created_at,public_metrics"},
	})
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

	var parsed tweetsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return provider.RawPayload{}, provider.Envelope{}, provider.ParseError("decode tweets", err)
	}

	var posts []provider.MicroBlogPost
	for _, t := range parsed.Data {
		posts = append(posts, provider.MicroBlogPost{
			ID:          t.ID,
			Body:        t.Text,
			Timestamp:   t.CreatedAt,
			LikeCount:   t.PublicMetrics.LikeCount,
			RepostCount: t.PublicMetrics.RetweetCount,
			ReplyCount:  t.PublicMetrics.ReplyCount,
			URL:         "https://microblog.example/status/" + t.ID,
		})
		if len(posts) >= maxItems {
			break
		}
	}

	raw := provider.RawPayload{Platform: string(models.PlatformMicroBlog), MicroBlog: &provider.MicroBlogRaw{Posts: posts}}
	return raw, provider.Envelope{}, nil
}
