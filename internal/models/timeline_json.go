package models

import (
	"encoding/json"
	"time"
)

// timelineItemWire is TimelineItem's wire shape with Payload held as raw
// JSON so UnmarshalJSON can dispatch on Type before decoding it, and
// MarshalJSON can reuse the same field layout as the real struct.
type timelineItemWire struct {
	ID            string          `json:"id"`
	Platform      Platform        `json:"platform"`
	Type          ItemType        `json:"type"`
	Timestamp     string          `json:"timestamp"`
	Title         string          `json:"title"`
	URL           string          `json:"url,omitempty"`
	AccountHandle string          `json:"account_handle,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// MarshalJSON is explicit (rather than relying on the default) so the
// Payload field round-trips through the Snapshot Store's JSON bytes with
// its type tag intact and stays symmetric with UnmarshalJSON below.
func (t TimelineItem) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(timelineItemWire{
		ID: t.ID, Platform: t.Platform, Type: t.Type, Timestamp: t.Timestamp,
		Title: t.Title, URL: t.URL, AccountHandle: t.AccountHandle, Payload: payload,
	})
}

// UnmarshalJSON re-hydrates Payload into the concrete type-tagged variant
// named by Type, rather than the generic map[string]interface{}
// encoding/json would otherwise produce. Without this, a TimelineItem read
// back from the Snapshot Store could no longer be type-switched on by
// group.Group or materialize.FilterForProfile.
func (t *TimelineItem) UnmarshalJSON(data []byte) error {
	var wire timelineItemWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.ID, t.Platform, t.Type = wire.ID, wire.Platform, wire.Type
	t.Timestamp, t.Title, t.URL = wire.Timestamp, wire.Title, wire.URL
	t.AccountHandle = wire.AccountHandle
	t.ParsedAt = parseRFC3339(t.Timestamp)

	if len(wire.Payload) == 0 {
		return nil
	}
	payload, err := decodePayload(t.Type, wire.Payload)
	if err != nil {
		return err
	}
	t.Payload = payload
	return nil
}

func decodePayload(itemType ItemType, raw json.RawMessage) (any, error) {
	switch itemType {
	case ItemCommit:
		var p CommitPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ItemPullRequest:
		var p PullRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ItemPost, ItemComment:
		// A comment's payload is the same shape minus counts; decode the
		// richer PostPayload for ItemPost and CommentPayload otherwise.
		if itemType == ItemComment {
			var p CommentPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return p, nil
		}
		var p PostPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ItemVideo:
		var p VideoPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ItemTask:
		var p TaskPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		var generic map[string]any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
}

// decodeDateGroupEntry decodes one element of DateGroup.Items into either a
// CommitGroup (identified by its "commits" array, a field no TimelineItem
// has) or a TimelineItem.
func decodeDateGroupEntry(raw json.RawMessage) (any, error) {
	var probe struct {
		Commits *json.RawMessage `json:"commits"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Commits != nil {
		var cg CommitGroup
		if err := json.Unmarshal(raw, &cg); err != nil {
			return nil, err
		}
		return cg, nil
	}
	var item TimelineItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return item, nil
}

// UnmarshalJSON reconstructs the heterogeneous Items slice, dispatching
// each element to CommitGroup or TimelineItem per decodeDateGroupEntry.
func (g *DateGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date  string            `json:"date"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Date = raw.Date
	g.Items = make([]any, 0, len(raw.Items))
	for _, item := range raw.Items {
		decoded, err := decodeDateGroupEntry(item)
		if err != nil {
			return err
		}
		g.Items = append(g.Items, decoded)
	}
	return nil
}

// parseRFC3339 best-effort parses an ISO-8601 timestamp for ordering,
// mirroring normalize.parseTimestamp (duplicated here to avoid an import
// cycle: normalize already depends on models).
func parseRFC3339(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
