package mock

import (
	"context"
	"testing"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

func TestMockReturnsCannedPayloadAndCounts(t *testing.T) {
	a := New(models.PlatformCodeHost)
	payload := provider.RawPayload{Platform: "github", CodeHost: &provider.CodeHostRaw{}}
	a.SetPayload(payload, provider.Envelope{})

	got, _, err := a.Fetch(context.Background(), "tok", "handle")
	if err != nil {
		t.Fatal(err)
	}
	if got.CodeHost == nil {
		t.Fatal("expected canned payload to be returned")
	}
	if a.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", a.CallCount())
	}

	_, _, _ = a.Fetch(context.Background(), "tok", "handle")
	if a.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", a.CallCount())
	}
}

func TestMockFailNextIsConsumedOnce(t *testing.T) {
	a := New(models.PlatformCodeHost)
	a.SetPayload(provider.RawPayload{Platform: "github", CodeHost: &provider.CodeHostRaw{}}, provider.Envelope{})
	a.FailNext(provider.RateLimited(120 * time.Second))

	_, _, err := a.Fetch(context.Background(), "tok", "handle")
	perr, ok := err.(*provider.Error)
	if !ok || perr.Kind != provider.ErrRateLimited {
		t.Fatalf("expected rate_limited error, got %v", err)
	}

	got, _, err := a.Fetch(context.Background(), "tok", "handle")
	if err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
	if got.CodeHost == nil {
		t.Fatal("expected canned payload on second call")
	}
}
