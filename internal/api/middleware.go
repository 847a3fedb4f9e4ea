package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle caps inbound request rates per caller. It runs ahead of
// authentication, so the client network address is the only caller
// identity available to key on.
type throttle struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*bucket
	lastScan time.Time
}

type bucket struct {
	limiter *rate.Limiter
	touched time.Time
}

// idleBucketTTL bounds how long an idle caller's bucket survives before a
// scan drops it.
const idleBucketTTL = 15 * time.Minute

func newThrottle(rps float64, burst int) *throttle {
	return &throttle{rps: rate.Limit(rps), burst: burst, buckets: make(map[string]*bucket)}
}

// middleware enforces the per-caller rate before routing. The health
// endpoint stays unthrottled so probes keep working under load, and a
// zero/negative rate disables throttling entirely.
func (t *throttle) middleware(next http.Handler) http.Handler {
	if t == nil || t.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if !t.allow(callerKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *throttle) allow(key string) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastScan) > time.Minute {
		for k, b := range t.buckets {
			if now.Sub(b.touched) > idleBucketTTL {
				delete(t.buckets, k)
			}
		}
		t.lastScan = now
	}

	b := t.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[key] = b
	}
	b.touched = now
	return b.limiter.Allow()
}

// callerKey picks the best available client identity: the first
// (client-side) X-Forwarded-For entry when a proxy set one, the bare remote
// address otherwise.
func callerKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}
	return "unknown"
}
