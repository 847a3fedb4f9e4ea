// Package api implements the inbound HTTP surface: bearer-auth timeline
// reads, raw-snapshot reads, on-demand refresh, and a health check, routed
// with github.com/gorilla/mux.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulsetrail/aggregator/internal/snapshot"
)

// AccountOwnerStore resolves the user-id owning an account, so the raw
// snapshot endpoint can enforce that a caller only reads their own
// accounts' data.
type AccountOwnerStore interface {
	GetAccountOwnerUserID(ctx context.Context, accountID string) (string, error)
}

// Refresher triggers an immediate fetch+materialize cycle for one user,
// satisfied by *scheduler.Scheduler.
type Refresher interface {
	RefreshUser(ctx context.Context, userID string) error
}

// Server is the process-wide HTTP dependency set, its fields set once at
// construction.
type Server struct {
	snapshots      snapshot.Interface
	owners         AccountOwnerStore
	refresher      Refresher
	auth           *Authenticator
	limits         *throttle
	refreshTimeout time.Duration

	httpServer *http.Server
}

// Config bounds the HTTP listener, the refresh endpoint's own timeout
// (independent of the scheduler's tick budget), and the inbound
// per-caller rate limit.
type Config struct {
	Port           string
	RefreshTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

func (c Config) withDefaults() Config {
	if c.Port == "" {
		c.Port = "8787"
	}
	if c.RefreshTimeout == 0 {
		c.RefreshTimeout = 30 * time.Second
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 10
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 20
	}
	return c
}

func NewServer(snapshots snapshot.Interface, owners AccountOwnerStore, refresher Refresher, auth *Authenticator, cfg Config) *Server {
	cfg = cfg.withDefaults()

	s := &Server{
		snapshots:      snapshots,
		owners:         owners,
		refresher:      refresher,
		auth:           auth,
		limits:         newThrottle(cfg.RateLimitRPS, cfg.RateLimitBurst),
		refreshTimeout: cfg.RefreshTimeout,
	}

	r := mux.NewRouter()
	r.Use(commonMiddleware)
	r.Use(s.limits.middleware)

	registerBaseRoutes(r, s)
	registerTimelineRoutes(r, s)

	s.httpServer = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	return s
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// commonMiddleware sets the shared response headers and short-circuits
// CORS preflight.
func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
