// Package linkagg implements the link-aggregator adapter: fetches the
// user's posts and comments and maintains a meta block (karma, active
// subreddits).
package linkagg

import (
	"context"
	"encoding/json"

	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

const DefaultBaseURL = "https://api.linkagg.example"

type Adapter struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformLinkAgg }

type userAbout struct {
	Data struct {
		Karma int `json:"total_karma"`
	} `json:"data"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string `json:"id"`
				Subreddit string `json:"subreddit"`
				Body      string `json:"body"`
				Selftext  string `json:"selftext"`
				ParentID  string `json:"parent_id"`
				CreatedAt string `json:"created_utc_iso"`
				URL       string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *Adapter) Fetch(ctx context.Context, token, username string) (provider.RawPayload, provider.Envelope, error) {
	about, err := a.fetchAbout(ctx, token, username)
	if err != nil {
		return provider.RawPayload{}, provider.Envelope{}, err
	}

	posts, err := a.fetchListing(ctx, token, "/user/"+username+"/submitted")
	if err != nil {
		return provider.RawPayload{}, provider.Envelope{}, err
	}
	comments, err := a.fetchListing(ctx, token, "/user/"+username+"/comments")
	if err != nil {
		return provider.RawPayload{}, provider.Envelope{}, err
	}

	subredditSet := map[string]bool{}
	var out provider.LinkAggRaw
	for _, c := range posts.Data.Children {
		subredditSet[c.Data.Subreddit] = true
		out.Posts = append(out.Posts, provider.LinkAggPost{
			ID:        c.Data.ID,
			Subreddit: c.Data.Subreddit,
			Body:      firstNonEmpty(c.Data.Selftext, c.Data.Body),
			Timestamp: c.Data.CreatedAt,
			URL:       c.Data.URL,
		})
	}
	for _, c := range comments.Data.Children {
		subredditSet[c.Data.Subreddit] = true
		out.Comments = append(out.Comments, provider.LinkAggComment{
			ID:        c.Data.ID,
			ParentURI: c.Data.ParentID,
			Body:      c.Data.Body,
			Timestamp: c.Data.CreatedAt,
			URL:       c.Data.URL,
		})
	}

	subreddits := make([]string, 0, len(subredditSet))
	for s := range subredditSet {
		subreddits = append(subreddits, s)
	}
	out.Meta = provider.LinkAggMeta{Karma: about.Data.Karma, ActiveSubreddits: subreddits}

	raw := provider.RawPayload{Platform: string(models.PlatformLinkAgg), LinkAgg: &out}
	return raw, provider.Envelope{}, nil
}

func (a *Adapter) fetchAbout(ctx context.Context, token, username string) (userAbout, error) {
	resp, err := a.client.GetJSON(ctx, "/user/"+username+"/about", token, nil)
	if err != nil {
		return userAbout{}, provider.NetworkError(err)
	}
	body, err := httpclient.ReadAll(resp)
	if err != nil {
		return userAbout{}, provider.NetworkError(err)
	}
	if resp.StatusCode != 200 {
		return userAbout{}, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
	}
	var about userAbout
	if err := json.Unmarshal(body, &about); err != nil {
		return userAbout{}, provider.ParseError("decode about", err)
	}
	return about, nil
}

func (a *Adapter) fetchListing(ctx context.Context, token, path string) (listing, error) {
	resp, err := a.client.GetJSON(ctx, path, token, nil)
	if err != nil {
		return listing{}, provider.NetworkError(err)
	}
	body, err := httpclient.ReadAll(resp)
	if err != nil {
		return listing{}, provider.NetworkError(err)
	}
	if resp.StatusCode != 200 {
		return listing{}, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
	}
	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return listing{}, provider.ParseError("decode listing", err)
	}
	return l, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
