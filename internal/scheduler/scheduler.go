// Package scheduler drives the ingestion pipeline: a periodic tick fans
// fetch attempts out across a bounded worker pool, serialized per account,
// then materializes the timeline for every user with at least one
// successful fetch this tick.
package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/credential"
	"github.com/pulsetrail/aggregator/internal/materialize"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
	"github.com/pulsetrail/aggregator/internal/ratelimit"
	"github.com/pulsetrail/aggregator/internal/snapshot"
)

// ActiveAccount is one row of the active-accounts-joined-with-user-ids
// enumeration each tick starts from: an Account is owned by a Profile
// which is owned by a User, so the join has to happen once, in the
// repository, rather than be re-derived per fetch task.
type ActiveAccount struct {
	models.Account
	UserID string
}

// AccountStore is the account-side persistence boundary the Scheduler
// needs: enumerating active accounts, marking one inactive on auth
// revocation, and touching last_fetched_at on success.
type AccountStore interface {
	ListActiveAccounts(ctx context.Context) ([]ActiveAccount, error)
	MarkInactive(ctx context.Context, accountID string) error
	TouchLastFetched(ctx context.Context, accountID string, at time.Time) error
}

// Config bounds the tick's concurrency and wall-clock budget. Zero values
// fall back to the defaults below.
type Config struct {
	WorkerCount int
	TickBudget  time.Duration
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerCount == 0 {
		c.WorkerCount = 16
	}
	if c.TickBudget == 0 {
		c.TickBudget = 4 * time.Minute
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 20 * time.Second
	}
	return c
}

// Scheduler is the process-wide dependency set for one tick loop,
// initialized once per process.
type Scheduler struct {
	accounts  AccountStore
	gate      *ratelimit.Gate
	snapshots snapshot.Interface
	adapters  map[models.Platform]provider.Adapter
	key       credential.Key
	config    Config

	// tickMu keeps ticks from overlapping within the process: a new tick
	// is skipped outright if the previous one has not yet released.
	tickMu sync.Mutex

	// refreshGroup collapses concurrent on-demand refresh requests for the
	// same user id into a single fetch+materialize run, so a user mashing
	// the refresh button doesn't fan out duplicate fetches against every
	// upstream platform.
	refreshGroup singleflight.Group
}

func New(accounts AccountStore, gate *ratelimit.Gate, snapshots snapshot.Interface, adapters map[models.Platform]provider.Adapter, key credential.Key, cfg Config) *Scheduler {
	return &Scheduler{
		accounts:  accounts,
		gate:      gate,
		snapshots: snapshots,
		adapters:  adapters,
		key:       key,
		config:    cfg.withDefaults(),
	}
}

// Run drives the periodic tick loop until ctx is cancelled: each iteration
// runs one tick to completion (or to its budget) and sleeps until the next
// is due.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes exactly one tick: enumerate active accounts, fan out
// fetches, materialize affected users. It is exported so a caller can
// trigger one tick outside the periodic cadence; the on-demand per-user
// refresh goes through RefreshUser instead.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.tickMu.TryLock() {
		log.Printf("[scheduler] tick skipped: previous tick still running")
		return
	}
	defer s.tickMu.Unlock()

	tickCtx, cancel := context.WithTimeout(ctx, s.config.TickBudget)
	defer cancel()

	accounts, err := s.accounts.ListActiveAccounts(tickCtx)
	if err != nil {
		log.Printf("[scheduler] list active accounts failed: %v", err)
		return
	}

	byUser := groupByUser(accounts)
	affected := s.fanOut(tickCtx, accounts)
	s.materializeUsers(tickCtx, affected, byUser)
}

// groupByUser builds each user's full active-account list once per tick.
// Materialization folds this full set, not just the tick's successful
// fetches: an account whose fetch failed this tick still contributes its
// last good raw snapshot, and the materializer itself skips accounts that
// have never produced one.
func groupByUser(accounts []ActiveAccount) map[string][]materialize.AccountRef {
	byUser := make(map[string][]materialize.AccountRef)
	for _, a := range accounts {
		byUser[a.UserID] = append(byUser[a.UserID], materialize.AccountRef{
			AccountID: a.ID,
			Platform:  a.Platform,
			Handle:    a.PlatformHandle,
		})
	}
	return byUser
}

// fanOut runs a bounded worker pool with one fetch task per account, so an
// account has at most one fetch in flight within a tick. The Gate's
// per-account lock serializes only its state updates; a concurrent
// RefreshUser run is not excluded from fetching the same account. Returns
// the set of user ids with at least one successful fetch.
func (s *Scheduler) fanOut(ctx context.Context, accounts []ActiveAccount) map[string]struct{} {
	sem := make(chan struct{}, s.config.WorkerCount)
	var wg sync.WaitGroup

	var mu sync.Mutex
	affected := make(map[string]struct{})

	for _, acct := range accounts {
		acct := acct
		select {
		case <-ctx.Done():
			wg.Wait()
			return affected
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			if !s.fetchOne(ctx, acct.Account) {
				return
			}
			mu.Lock()
			affected[acct.UserID] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return affected
}

// fetchOne runs the straight-line sequence for one account: Gate check,
// decrypt, adapter fetch, raw-snapshot write, Gate update. It never panics
// the fan-out; fetch and marshal errors become a Gate transition (auth
// expiry marks the account inactive instead), while Gate-read, decrypt,
// missing-adapter and snapshot-write errors only skip the account for this
// tick. Every error is logged.
func (s *Scheduler) fetchOne(ctx context.Context, acct models.Account) bool {
	should, err := s.gate.ShouldFetch(ctx, acct.ID)
	if err != nil {
		log.Printf("[scheduler] gate read failed for account %s: %v", acct.ID, err)
		return false
	}
	if !should {
		return false
	}

	token, err := credential.DecryptBytes(acct.EncAccessToken, s.key)
	if err != nil {
		log.Printf("[scheduler] decrypt failed for account %s: %v", acct.ID, err)
		return false
	}

	adapter, ok := s.adapters[acct.Platform]
	if !ok {
		log.Printf("[scheduler] no adapter registered for platform %s", acct.Platform)
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.HTTPTimeout)
	payload, envelope, fetchErr := adapter.Fetch(fetchCtx, token, acct.PlatformHandle)
	cancel()

	if fetchErr != nil {
		s.recordFailure(ctx, acct, fetchErr)
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.gate.Record(ctx, acct.ID, ratelimit.Outcome{Kind: ratelimit.OutcomeFailure})
		log.Printf("[scheduler] marshal payload failed for account %s: %v", acct.ID, err)
		return false
	}

	storeID := snapshot.RawStoreID(acct.Platform, acct.ID)
	rawMeta, err := s.snapshots.Put(ctx, storeID, data, snapshot.PutOptions{
		Tags: []string{"platform:" + string(acct.Platform), "account:" + acct.ID},
	})
	if err != nil {
		log.Printf("[scheduler] snapshot write failed for account %s: %v", acct.ID, err)
		return false
	}

	// The link-aggregator adapter maintains an auxiliary meta block (karma,
	// active subreddits). It lives in a sibling meta store the Materializer
	// never reads, derived from the raw snapshot just written.
	if payload.LinkAgg != nil {
		metaBytes, err := json.Marshal(payload.LinkAgg.Meta)
		if err != nil {
			log.Printf("[scheduler] marshal meta payload failed for account %s: %v", acct.ID, err)
		} else if _, err := s.snapshots.Put(ctx, snapshot.RawMetaStoreID(acct.Platform, acct.ID), metaBytes, snapshot.PutOptions{
			Tags:    []string{"platform:" + string(acct.Platform), "account:" + acct.ID, "meta"},
			Parents: []models.SnapshotParent{{StoreID: storeID, Version: rawMeta.Version, Role: models.RoleDerivedFrom}},
		}); err != nil {
			log.Printf("[scheduler] meta snapshot write failed for account %s: %v", acct.ID, err)
		}
	}

	if err := s.gate.Record(ctx, acct.ID, ratelimit.Outcome{
		Kind:       ratelimit.OutcomeSuccess,
		Remaining:  envelope.Remaining,
		LimitTotal: envelope.LimitTotal,
		ResetAt:    envelope.ResetAt,
	}); err != nil {
		log.Printf("[scheduler] gate update failed for account %s: %v", acct.ID, err)
	}

	if err := s.accounts.TouchLastFetched(ctx, acct.ID, time.Now().UTC()); err != nil {
		log.Printf("[scheduler] touch last_fetched_at failed for account %s: %v", acct.ID, err)
	}

	return true
}

// recordFailure maps a provider.Error onto the Gate's outcome vocabulary
// and, for auth failures, marks the account inactive so the scheduler
// stops retrying it until a fresh OAuth flow.
func (s *Scheduler) recordFailure(ctx context.Context, acct models.Account, fetchErr error) {
	perr, ok := fetchErr.(*provider.Error)
	if !ok {
		s.gate.Record(ctx, acct.ID, ratelimit.Outcome{Kind: ratelimit.OutcomeFailure})
		log.Printf("[scheduler] unrecognized fetch error for account %s: %v", acct.ID, fetchErr)
		return
	}

	switch perr.Kind {
	case provider.ErrRateLimited:
		if err := s.gate.Record(ctx, acct.ID, ratelimit.Outcome{Kind: ratelimit.OutcomeRateLimited, RetryAfter: perr.RetryAfter}); err != nil {
			log.Printf("[scheduler] gate record (rate_limited) failed for account %s: %v", acct.ID, err)
		}
	case provider.ErrAuthExpired:
		if err := s.accounts.MarkInactive(ctx, acct.ID); err != nil {
			log.Printf("[scheduler] mark inactive failed for account %s: %v", acct.ID, err)
		}
	default:
		if err := s.gate.Record(ctx, acct.ID, ratelimit.Outcome{Kind: ratelimit.OutcomeFailure}); err != nil {
			log.Printf("[scheduler] gate record (failure) failed for account %s: %v", acct.ID, err)
		}
	}

	log.Printf("[scheduler] fetch failed for account %s platform %s: %v", acct.ID, acct.Platform, perr)
}

// refreshWorkerCount bounds the dedicated lane used by on-demand refresh
// requests so they can never starve the periodic tick's worker pool.
const refreshWorkerCount = 2

// RefreshUser runs an immediate fetch+materialize for every active account
// owned by userID, outside the regular tick cadence. It reuses fetchOne's
// Gate/decrypt/adapter/snapshot sequence, fanned out over a small dedicated
// lane rather than the tick's worker pool. Concurrent calls for the same
// userID share one in-flight run via refreshGroup.
func (s *Scheduler) RefreshUser(ctx context.Context, userID string) error {
	_, err, _ := s.refreshGroup.Do(userID, func() (any, error) {
		return nil, s.refreshUserOnce(ctx, userID)
	})
	return err
}

func (s *Scheduler) refreshUserOnce(ctx context.Context, userID string) error {
	accounts, err := s.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return err
	}

	var mine []ActiveAccount
	for _, a := range accounts {
		if a.UserID == userID {
			mine = append(mine, a)
		}
	}
	if len(mine) == 0 {
		return nil
	}

	sem := make(chan struct{}, refreshWorkerCount)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded int

	for _, acct := range mine {
		acct := acct
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if s.fetchOne(ctx, acct.Account) {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded == 0 {
		return nil
	}

	// Fold the user's full active set, not just the accounts that fetched
	// fresh data this time: the others still contribute their latest
	// stored raw snapshots.
	refs := make([]materialize.AccountRef, 0, len(mine))
	for _, acct := range mine {
		refs = append(refs, materialize.AccountRef{AccountID: acct.ID, Platform: acct.Platform, Handle: acct.PlatformHandle})
	}
	_, err = materialize.Materialize(ctx, s.snapshots, userID, refs)
	return err
}

// materializeUsers runs the Timeline Materializer once per affected user,
// each independent of the others: a materialization failure for one user
// never affects another's. Each user's timeline folds their full active
// account set from byUser, so an account that failed this tick keeps
// contributing its last good raw snapshot.
func (s *Scheduler) materializeUsers(ctx context.Context, affected map[string]struct{}, byUser map[string][]materialize.AccountRef) {
	for userID := range affected {
		if _, err := materialize.Materialize(ctx, s.snapshots, userID, byUser[userID]); err != nil {
			log.Printf("[scheduler] materialize failed for user %s: %v", userID, apperr.KindOf(err))
		}
	}
}
