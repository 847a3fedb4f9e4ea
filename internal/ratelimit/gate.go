package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

// Store is the persistence boundary the Gate needs: read-modify-write of
// one account's RateLimitState. internal/repository.Repository implements
// this against Postgres.
type Store interface {
	GetRateLimitState(ctx context.Context, accountID string) (models.RateLimitState, error)
	PutRateLimitState(ctx context.Context, state models.RateLimitState) error
}

// Gate serializes state transitions per account id around a
// repository-backed read-modify-write, so two concurrent fetch attempts
// for the same account never race the backoff computation.
type Gate struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGate(store Store) *Gate {
	return &Gate{store: store, locks: make(map[string]*sync.Mutex)}
}

// ShouldFetch reads current state and applies the §4.2 predicate.
func (g *Gate) ShouldFetch(ctx context.Context, accountID string) (bool, error) {
	state, err := g.store.GetRateLimitState(ctx, accountID)
	if err != nil {
		return false, err
	}
	return ShouldFetch(&state, time.Now()), nil
}

// Record applies outcome to the account's state and persists the result.
func (g *Gate) Record(ctx context.Context, accountID string, outcome Outcome) error {
	lock := g.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	state, err := g.store.GetRateLimitState(ctx, accountID)
	if err != nil {
		return err
	}
	state.AccountID = accountID

	next := Apply(state, outcome, time.Now())
	return g.store.PutRateLimitState(ctx, next)
}

func (g *Gate) lockFor(accountID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[accountID] = l
	}
	return l
}
