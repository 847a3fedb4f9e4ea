// Package mock implements memory-backed provider adapters for tests and
// local runs: canned payloads, on-demand rate-limit/auth/network failure
// injection, and a call counter, behind the same interface as the real
// adapters.
package mock

import (
	"context"
	"sync"

	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
)

// Adapter is a canned, call-counting stand-in for a real provider.Adapter.
type Adapter struct {
	platform models.Platform

	mu       sync.Mutex
	calls    int
	payload  provider.RawPayload
	envelope provider.Envelope
	nextErr  *provider.Error
}

func New(platform models.Platform) *Adapter {
	return &Adapter{platform: platform}
}

func (a *Adapter) Platform() models.Platform { return a.platform }

// SetPayload sets the payload (and optional envelope) the next and all
// subsequent Fetch calls return, until changed again.
func (a *Adapter) SetPayload(payload provider.RawPayload, envelope provider.Envelope) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payload = payload
	a.envelope = envelope
}

// FailNext arranges for the single next Fetch call to return err instead of
// the canned payload; it is consumed on use.
func (a *Adapter) FailNext(err *provider.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextErr = err
}

// CallCount returns the number of times Fetch has been invoked.
func (a *Adapter) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Adapter) Fetch(_ context.Context, _, _ string) (provider.RawPayload, provider.Envelope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	if a.nextErr != nil {
		err := a.nextErr
		a.nextErr = nil
		return provider.RawPayload{}, provider.Envelope{}, err
	}
	return a.payload, a.envelope, nil
}

var _ provider.Adapter = (*Adapter)(nil)
