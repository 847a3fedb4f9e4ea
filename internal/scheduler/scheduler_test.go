package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pulsetrail/aggregator/internal/credential"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
	"github.com/pulsetrail/aggregator/internal/provider/mock"
	"github.com/pulsetrail/aggregator/internal/ratelimit"
	"github.com/pulsetrail/aggregator/internal/snapshot"
)

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts []ActiveAccount
	inactive map[string]bool
	touched  map[string]time.Time
}

func newFakeAccountStore(accounts []ActiveAccount) *fakeAccountStore {
	return &fakeAccountStore{accounts: accounts, inactive: make(map[string]bool), touched: make(map[string]time.Time)}
}

func (f *fakeAccountStore) ListActiveAccounts(ctx context.Context) ([]ActiveAccount, error) {
	return f.accounts, nil
}

func (f *fakeAccountStore) MarkInactive(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inactive[accountID] = true
	return nil
}

func (f *fakeAccountStore) TouchLastFetched(ctx context.Context, accountID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[accountID] = at
	return nil
}

type fakeGateStore struct {
	mu     sync.Mutex
	states map[string]models.RateLimitState
}

func newFakeGateStore() *fakeGateStore {
	return &fakeGateStore{states: make(map[string]models.RateLimitState)}
}

func (f *fakeGateStore) GetRateLimitState(ctx context.Context, accountID string) (models.RateLimitState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[accountID], nil
}

func (f *fakeGateStore) PutRateLimitState(ctx context.Context, state models.RateLimitState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.AccountID] = state
	return nil
}

func encryptedToken(t *testing.T, key credential.Key, token string) []byte {
	t.Helper()
	enc, err := credential.EncryptBytes(token, key)
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

// TestSchedulerHappyPathWritesSnapshotAndMaterializes drives the whole
// tick path: one account, one successful fetch, one materialized timeline
// for its owning user.
func TestSchedulerHappyPathWritesSnapshotAndMaterializes(t *testing.T) {
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	store := snapshot.NewMemoryStore()
	gateStore := newFakeGateStore()
	gate := ratelimit.NewGate(gateStore)

	acct := ActiveAccount{
		Account: models.Account{ID: "acct1", ProfileID: "profile1", Platform: models.PlatformCodeHost, EncAccessToken: encryptedToken(t, key, "tok")},
		UserID:  "user1",
	}
	accounts := newFakeAccountStore([]ActiveAccount{acct})

	adapter := mock.New(models.PlatformCodeHost)
	adapter.SetPayload(provider.RawPayload{
		Platform: "github",
		CodeHost: &provider.CodeHostRaw{
			Repos: map[string]provider.CodeHostRepo{
				"alice/x": {Commits: []provider.CodeHostCommit{{SHA: "aaaaaaa", Message: "m", Timestamp: "2024-01-15T10:00:00Z"}}},
			},
		},
	}, provider.Envelope{})

	sched := New(accounts, gate, store, map[models.Platform]provider.Adapter{models.PlatformCodeHost: adapter}, key, Config{})
	sched.RunOnce(context.Background())

	if adapter.CallCount() != 1 {
		t.Fatalf("expected adapter to be called once, got %d", adapter.CallCount())
	}

	_, _, err := store.GetLatest(context.Background(), snapshot.RawStoreID(models.PlatformCodeHost, "acct1"))
	if err != nil {
		t.Fatalf("expected raw snapshot to be written: %v", err)
	}

	_, _, err = store.GetLatest(context.Background(), snapshot.TimelineStoreID("user1"))
	if err != nil {
		t.Fatalf("expected timeline snapshot to be materialized: %v", err)
	}

	if accounts.touched["acct1"].IsZero() {
		t.Fatal("expected last_fetched_at to be touched")
	}
}

// TestSchedulerMaterializesFullActiveSetOnPartialFailure covers the
// partial-failure tick: one of a user's accounts fetches fresh data, the
// other fails but already has a raw snapshot from an earlier tick. The new
// timeline must fold both, not just this tick's success.
func TestSchedulerMaterializesFullActiveSetOnPartialFailure(t *testing.T) {
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	store := snapshot.NewMemoryStore()
	gate := ratelimit.NewGate(newFakeGateStore())

	accounts := newFakeAccountStore([]ActiveAccount{
		{
			Account: models.Account{ID: "gh1", ProfileID: "profile1", Platform: models.PlatformCodeHost, EncAccessToken: encryptedToken(t, key, "tok")},
			UserID:  "user1",
		},
		{
			Account: models.Account{ID: "la1", ProfileID: "profile1", Platform: models.PlatformLinkAgg, EncAccessToken: encryptedToken(t, key, "tok")},
			UserID:  "user1",
		},
	})

	// The link-aggregator account has a raw snapshot from an earlier tick.
	prior, err := json.Marshal(provider.RawPayload{
		Platform: "linkagg",
		LinkAgg: &provider.LinkAggRaw{
			Posts: []provider.LinkAggPost{{ID: "p1", Subreddit: "golang", Body: "old post", Timestamp: "2024-01-14T08:00:00Z"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(context.Background(), snapshot.RawStoreID(models.PlatformLinkAgg, "la1"), prior, snapshot.PutOptions{}); err != nil {
		t.Fatal(err)
	}

	gh := mock.New(models.PlatformCodeHost)
	gh.SetPayload(provider.RawPayload{
		Platform: "github",
		CodeHost: &provider.CodeHostRaw{
			Repos: map[string]provider.CodeHostRepo{
				"alice/x": {Commits: []provider.CodeHostCommit{{SHA: "aaaaaaa", Message: "m", Timestamp: "2024-01-15T10:00:00Z"}}},
			},
		},
	}, provider.Envelope{})

	la := mock.New(models.PlatformLinkAgg)
	la.FailNext(provider.NetworkError(context.DeadlineExceeded))

	sched := New(accounts, gate, store, map[models.Platform]provider.Adapter{
		models.PlatformCodeHost: gh,
		models.PlatformLinkAgg:  la,
	}, key, Config{})
	sched.RunOnce(context.Background())

	_, data, err := store.GetLatest(context.Background(), snapshot.TimelineStoreID("user1"))
	if err != nil {
		t.Fatalf("expected timeline snapshot: %v", err)
	}
	var snap models.TimelineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatal(err)
	}

	var sawCommitGroup, sawLinkAggPost bool
	for _, dg := range snap.Groups {
		for _, raw := range dg.Items {
			switch v := raw.(type) {
			case models.CommitGroup:
				sawCommitGroup = true
			case models.TimelineItem:
				if v.Platform == models.PlatformLinkAgg {
					sawLinkAggPost = true
				}
			}
		}
	}
	if !sawCommitGroup {
		t.Fatal("expected this tick's commit group in the timeline")
	}
	if !sawLinkAggPost {
		t.Fatal("expected the failed account's prior snapshot to still contribute to the timeline")
	}
}

// TestSchedulerWritesLinkAggMetaSidecar checks the auxiliary meta store:
// a link-aggregator fetch writes karma/subreddit meta next to the raw
// snapshot, derived from it, without the Materializer ever reading it.
func TestSchedulerWritesLinkAggMetaSidecar(t *testing.T) {
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	store := snapshot.NewMemoryStore()
	gate := ratelimit.NewGate(newFakeGateStore())

	acct := ActiveAccount{
		Account: models.Account{ID: "acct1", ProfileID: "profile1", Platform: models.PlatformLinkAgg, PlatformHandle: "alice", EncAccessToken: encryptedToken(t, key, "tok")},
		UserID:  "user1",
	}
	accounts := newFakeAccountStore([]ActiveAccount{acct})

	adapter := mock.New(models.PlatformLinkAgg)
	adapter.SetPayload(provider.RawPayload{
		Platform: "linkagg",
		LinkAgg: &provider.LinkAggRaw{
			Posts: []provider.LinkAggPost{{ID: "p1", Subreddit: "golang", Body: "hi", Timestamp: "2024-01-15T10:00:00Z"}},
			Meta:  provider.LinkAggMeta{Karma: 42, ActiveSubreddits: []string{"golang"}},
		},
	}, provider.Envelope{})

	sched := New(accounts, gate, store, map[models.Platform]provider.Adapter{models.PlatformLinkAgg: adapter}, key, Config{})
	sched.RunOnce(context.Background())

	meta, data, err := store.GetLatest(context.Background(), snapshot.RawMetaStoreID(models.PlatformLinkAgg, "acct1"))
	if err != nil {
		t.Fatalf("expected meta sidecar snapshot to be written: %v", err)
	}
	if len(meta.Parents) != 1 || meta.Parents[0].Role != models.RoleDerivedFrom {
		t.Fatalf("expected meta snapshot derived from the raw snapshot, got parents %+v", meta.Parents)
	}

	var decoded provider.LinkAggMeta
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Karma != 42 {
		t.Fatalf("expected karma 42 in meta sidecar, got %d", decoded.Karma)
	}
}

func TestSchedulerAuthExpiryMarksAccountInactive(t *testing.T) {
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	store := snapshot.NewMemoryStore()
	gate := ratelimit.NewGate(newFakeGateStore())

	acct := ActiveAccount{
		Account: models.Account{ID: "acct1", ProfileID: "profile1", Platform: models.PlatformCodeHost, EncAccessToken: encryptedToken(t, key, "tok")},
		UserID:  "user1",
	}
	accounts := newFakeAccountStore([]ActiveAccount{acct})

	adapter := mock.New(models.PlatformCodeHost)
	adapter.FailNext(provider.AuthExpired("token revoked"))

	sched := New(accounts, gate, store, map[models.Platform]provider.Adapter{models.PlatformCodeHost: adapter}, key, Config{})
	sched.RunOnce(context.Background())

	if !accounts.inactive["acct1"] {
		t.Fatal("expected account to be marked inactive on auth_expired")
	}
	if _, _, err := store.GetLatest(context.Background(), snapshot.RawStoreID(models.PlatformCodeHost, "acct1")); err == nil {
		t.Fatal("expected no raw snapshot to be written on auth failure")
	}
}

func TestSchedulerRateLimitedSkipsOnSubsequentTick(t *testing.T) {
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	store := snapshot.NewMemoryStore()
	gate := ratelimit.NewGate(newFakeGateStore())

	acct := ActiveAccount{
		Account: models.Account{ID: "acct1", ProfileID: "profile1", Platform: models.PlatformCodeHost, EncAccessToken: encryptedToken(t, key, "tok")},
		UserID:  "user1",
	}
	accounts := newFakeAccountStore([]ActiveAccount{acct})

	adapter := mock.New(models.PlatformCodeHost)
	adapter.FailNext(provider.RateLimited(2 * time.Minute))

	sched := New(accounts, gate, store, map[models.Platform]provider.Adapter{models.PlatformCodeHost: adapter}, key, Config{})
	sched.RunOnce(context.Background())
	sched.RunOnce(context.Background())

	if adapter.CallCount() != 1 {
		t.Fatalf("expected adapter called exactly once across two ticks while rate-limited, got %d", adapter.CallCount())
	}
}
