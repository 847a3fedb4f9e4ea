// Package codehost implements the code-host adapter: paginates a user's
// push events, extracts per-repo commits, and lists each repo's pull
// requests.
package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

// DefaultBaseURL is used when wiring the real adapter in cmd/aggregatord.
const DefaultBaseURL = "https://api.codehost.example/v3"

const eventPageSize = 100
const maxEventPages = 3

// Adapter fetches push events + per-repo commits/PRs from the code host.
// One Adapter is shared across every code-host account; the account's
// username travels in on each Fetch call via its PlatformHandle.
type Adapter struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformCodeHost }

type event struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Commits []struct {
			SHA     string `json:"sha"`
			Message string `json:"message"`
			URL     string `json:"url"`
		} `json:"commits"`
		Ref string `json:"ref"`
	} `json:"payload"`
	CreatedAt string `json:"created_at"`
}

type pullRequest struct {
	Number  int    `json:"number"`
	State   string `json:"state"`
	Merged  bool   `json:"merged"`
	Title   string `json:"title"`
	URL     string `json:"html_url"`
	Created string `json:"created_at"`
	Head    struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

type pullRequestCommit struct {
	SHA string `json:"sha"`
}

type commitDetail struct {
	SHA   string `json:"sha"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []struct{} `json:"files"`
}

func (a *Adapter) Fetch(ctx context.Context, token, username string) (provider.RawPayload, provider.Envelope, error) {
	repos := map[string]provider.CodeHostRepo{}
	var envelope provider.Envelope

	for page := 1; page <= maxEventPages; page++ {
		resp, err := a.client.GetJSON(ctx, fmt.Sprintf("/users/%s/events", username), token, url.Values{
			"per_page": {fmt.Sprintf("%d", eventPageSize)},
			"page":     {fmt.Sprintf("%d", page)},
		})
		if err != nil {
			return provider.RawPayload{}, envelope, provider.NetworkError(err)
		}

		envelope = provider.ParseRateLimitHeaders(
			resp.Header.Get("X-RateLimit-Remaining"),
			resp.Header.Get("X-RateLimit-Limit"),
			resp.Header.Get("X-RateLimit-Reset"),
		)

		body, err := httpclient.ReadAll(resp)
		if err != nil {
			return provider.RawPayload{}, envelope, provider.NetworkError(err)
		}
		if resp.StatusCode != 200 {
			return provider.RawPayload{}, envelope, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
		}

		var events []event
		if err := json.Unmarshal(body, &events); err != nil {
			return provider.RawPayload{}, envelope, provider.ParseError("decode events", err)
		}
		if len(events) == 0 {
			break
		}

		for _, ev := range events {
			if ev.Type != "PushEvent" {
				continue
			}
			repoEntry := repos[ev.Repo.Name]
			branch := strings.TrimPrefix(ev.Payload.Ref, "refs/heads/")
			for _, c := range ev.Payload.Commits {
				repoEntry.Commits = append(repoEntry.Commits, provider.CodeHostCommit{
					SHA:       c.SHA,
					Message:   c.Message,
					Timestamp: ev.CreatedAt,
					Branch:    branch,
					URL:       c.URL,
				})
			}
			repos[ev.Repo.Name] = repoEntry
		}
	}

	for repoName, entry := range repos {
		prs, prEnvelope, err := a.fetchPullRequests(ctx, token, repoName)
		if err != nil {
			return provider.RawPayload{}, envelope, err
		}
		if prEnvelope.Remaining != nil {
			envelope = prEnvelope
		}
		entry.PullRequests = prs
		repos[repoName] = entry

		stats, err := a.fetchCommitStats(ctx, token, repoName, entry.Commits)
		if err != nil {
			return provider.RawPayload{}, envelope, err
		}
		entry.Commits = stats
		repos[repoName] = entry
	}

	repoNames := make([]string, 0, len(repos))
	for name := range repos {
		repoNames = append(repoNames, name)
	}

	raw := provider.RawPayload{
		Platform: string(models.PlatformCodeHost),
		CodeHost: &provider.CodeHostRaw{
			Meta:  provider.CodeHostMeta{Username: username, Repositories: repoNames},
			Repos: repos,
		},
	}
	return raw, envelope, nil
}

func (a *Adapter) fetchPullRequests(ctx context.Context, token, repo string) ([]provider.CodeHostPullRequest, provider.Envelope, error) {
	resp, err := a.client.GetJSON(ctx, fmt.Sprintf("/repos/%s/pulls", repo), token, url.Values{"state": {"all"}})
	if err != nil {
		return nil, provider.Envelope{}, provider.NetworkError(err)
	}
	envelope := provider.ParseRateLimitHeaders(
		resp.Header.Get("X-RateLimit-Remaining"),
		resp.Header.Get("X-RateLimit-Limit"),
		resp.Header.Get("X-RateLimit-Reset"),
	)
	body, err := httpclient.ReadAll(resp)
	if err != nil {
		return nil, envelope, provider.NetworkError(err)
	}
	if resp.StatusCode != 200 {
		return nil, envelope, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
	}

	var prs []pullRequest
	if err := json.Unmarshal(body, &prs); err != nil {
		return nil, envelope, provider.ParseError("decode pull requests", err)
	}

	out := make([]provider.CodeHostPullRequest, 0, len(prs))
	for _, pr := range prs {
		state := pr.State
		if pr.Merged {
			state = "merged"
		}

		// Every commit belonging to the PR, so the grouper can drop each
		// of them from the standalone commit pool once the PR merges. The
		// head sha alone would leave a multi-commit PR's earlier commits
		// duplicated at top level.
		shas, err := a.fetchPullRequestCommits(ctx, token, repo, pr.Number)
		if err != nil {
			return nil, envelope, err
		}
		if len(shas) == 0 && pr.Head.SHA != "" {
			shas = []string{pr.Head.SHA}
		}

		out = append(out, provider.CodeHostPullRequest{
			Number:     pr.Number,
			State:      state,
			Title:      pr.Title,
			Timestamp:  pr.Created,
			CommitSHAs: shas,
			URL:        pr.URL,
		})
	}
	return out, envelope, nil
}

func (a *Adapter) fetchPullRequestCommits(ctx context.Context, token, repo string, number int) ([]string, error) {
	resp, err := a.client.GetJSON(ctx, fmt.Sprintf("/repos/%s/pulls/%d/commits", repo, number), token, nil)
	if err != nil {
		return nil, provider.NetworkError(err)
	}
	body, err := httpclient.ReadAll(resp)
	if err != nil {
		return nil, provider.NetworkError(err)
	}
	if resp.StatusCode != 200 {
		return nil, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
	}

	var commits []pullRequestCommit
	if err := json.Unmarshal(body, &commits); err != nil {
		return nil, provider.ParseError("decode pull request commits", err)
	}

	shas := make([]string, 0, len(commits))
	for _, c := range commits {
		shas = append(shas, c.SHA)
	}
	return shas, nil
}

func (a *Adapter) fetchCommitStats(ctx context.Context, token, repo string, commits []provider.CodeHostCommit) ([]provider.CodeHostCommit, error) {
	out := make([]provider.CodeHostCommit, 0, len(commits))
	for _, c := range commits {
		resp, err := a.client.GetJSON(ctx, fmt.Sprintf("/repos/%s/commits/%s", repo, c.SHA), token, nil)
		if err != nil {
			return nil, provider.NetworkError(err)
		}
		body, err := httpclient.ReadAll(resp)
		if err != nil {
			return nil, provider.NetworkError(err)
		}
		if resp.StatusCode != 200 {
			return nil, provider.ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
		}
		var detail commitDetail
		if err := json.Unmarshal(body, &detail); err != nil {
			return nil, provider.ParseError("decode commit detail", err)
		}
		c.Additions = detail.Stats.Additions
		c.Deletions = detail.Stats.Deletions
		c.Files = len(detail.Files)
		out = append(out, c)
	}
	return out, nil
}
