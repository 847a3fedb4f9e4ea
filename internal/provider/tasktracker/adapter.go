// Package tasktracker implements the task tracker adapter: fetches tasks
// assigned to or created by the account owner.
package tasktracker

import (
	"context"
	"encoding/json"

	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

const DefaultBaseURL = "https://api.tasktracker.example/v1"

type Adapter struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformTaskTracker }

type taskList struct {
	Tasks []struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Status    string `json:"status"`
		Board     string `json:"board_name"`
		UpdatedAt string `json:"updated_at"`
		URL       string `json:"url"`
	} `json:"tasks"`
}

// Fetch ignores handle: the task tracker's "assigned to me" endpoint is
// already scoped by the bearer token, so no per-account identifier is
// needed on the request.
func (a *Adapter) Fetch(ctx context.Context, token, _ string) (provider.RawPayload, provider.Envelope, error) {
	resp, err := a.client.GetJSON(ctx, "/tasks/assigned-to-me", token, nil)
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

	var parsed taskList
	if err := json.Unmarshal(body, &parsed); err != nil {
		return provider.RawPayload{}, provider.Envelope{}, provider.ParseError("decode tasks", err)
	}

	var tasks []provider.TaskItem
	for _, t := range parsed.Tasks {
		tasks = append(tasks, provider.TaskItem{
			ID:        t.ID,
			Title:     t.Title,
			Status:    t.Status,
			Board:     t.Board,
			Timestamp: t.UpdatedAt,
			URL:       t.URL,
		})
	}

	raw := provider.RawPayload{Platform: string(models.PlatformTaskTracker), TaskTracker: &provider.TaskTrackerRaw{Tasks: tasks}}
	return raw, provider.Envelope{}, nil
}
