// Command aggregatord is the process entrypoint: it wires config, the
// Postgres-backed repository and snapshot store, the per-platform
// Provider Adapters, the Rate-Limit Gate, the Scheduler's periodic tick,
// and the inbound HTTP API, then runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pulsetrail/aggregator/internal/api"
	"github.com/pulsetrail/aggregator/internal/config"
	"github.com/pulsetrail/aggregator/internal/credential"
	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/provider"
	"github.com/pulsetrail/aggregator/internal/provider/codehost"
	"github.com/pulsetrail/aggregator/internal/provider/linkagg"
	"github.com/pulsetrail/aggregator/internal/provider/microblog"
	"github.com/pulsetrail/aggregator/internal/provider/mock"
	"github.com/pulsetrail/aggregator/internal/provider/shortfeed"
	"github.com/pulsetrail/aggregator/internal/provider/tasktracker"
	"github.com/pulsetrail/aggregator/internal/provider/video"
	"github.com/pulsetrail/aggregator/internal/ratelimit"
	"github.com/pulsetrail/aggregator/internal/repository"
	"github.com/pulsetrail/aggregator/internal/scheduler"
	"github.com/pulsetrail/aggregator/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Println("Initializing pulsetrail aggregator...")
	log.Printf("DB: %s", redactDatabaseURL(cfg.DatabaseURL))
	log.Printf("API Port: %d", cfg.APIPort)

	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer repo.Close()

	if os.Getenv("SKIP_MIGRATION") == "true" {
		log.Println("Database migration SKIPPED (SKIP_MIGRATION=true)")
	} else {
		schemaPath := os.Getenv("SCHEMA_PATH")
		if schemaPath == "" {
			schemaPath = "internal/repository/schema.sql"
		}
		log.Println("Running database migration...")
		if err := repo.Migrate(schemaPath); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("Database migration complete.")
	}

	key := credential.DeriveKey(cfg.EncryptionKey)
	store := snapshot.New(repo.Pool())
	gate := ratelimit.NewGate(repo)

	adapters := buildAdapters(cfg)

	sched := scheduler.New(repo, gate, store, adapters, key, scheduler.Config{
		WorkerCount: cfg.SchedulerWorkerCount,
		TickBudget:  cfg.SchedulerTickBudget,
		HTTPTimeout: cfg.HTTPClientTimeout,
	})

	auth := api.NewAuthenticator(cfg.APIJWTSecret, repo.LookupUserIDByKeyHash)
	server := api.NewServer(store, repo, sched, auth, api.Config{
		Port:           strconv.Itoa(cfg.APIPort),
		RefreshTimeout: 30 * time.Second,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	if os.Getenv("ENABLE_SCHEDULER") != "false" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(ctx, cfg.SchedulerTickInterval); err != nil && err != context.Canceled {
				log.Printf("scheduler stopped: %v", err)
			}
		}()
	} else {
		log.Println("Scheduler is DISABLED (ENABLE_SCHEDULER=false)")
	}

	go func() {
		log.Printf("Starting API server on :%d", cfg.APIPort)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api server shutdown error: %v", err)
	}
	cancel()
	wg.Wait()
}

// buildAdapters builds one provider.Adapter per platform. MOCK_PROVIDERS=true
// swaps in the canned mock.Adapter for every platform, for local runs and
// integration tests without reachable upstream services.
func buildAdapters(cfg *config.Config) map[models.Platform]provider.Adapter {
	if os.Getenv("MOCK_PROVIDERS") == "true" {
		log.Println("Provider adapters: MOCK_PROVIDERS=true, using canned adapters for all platforms")
		adapters := make(map[models.Platform]provider.Adapter, len(models.Platforms))
		for _, platform := range models.Platforms {
			adapters[platform] = mock.New(platform)
		}
		return adapters
	}

	timeout := cfg.HTTPClientTimeout

	adapters := map[models.Platform]provider.Adapter{
		models.PlatformCodeHost:    codehost.New(httpclient.New(timeout, baseURLFor(models.PlatformCodeHost, codehost.DefaultBaseURL))),
		models.PlatformShortFeed:   shortfeed.New(httpclient.New(timeout, baseURLFor(models.PlatformShortFeed, shortfeed.DefaultBaseURL))),
		models.PlatformVideo:       video.New(httpclient.New(timeout, baseURLFor(models.PlatformVideo, video.DefaultBaseURL))),
		models.PlatformLinkAgg:     linkagg.New(httpclient.New(timeout, baseURLFor(models.PlatformLinkAgg, linkagg.DefaultBaseURL))),
		models.PlatformMicroBlog:   microblog.New(httpclient.New(timeout, baseURLFor(models.PlatformMicroBlog, microblog.DefaultBaseURL))),
		models.PlatformTaskTracker: tasktracker.New(httpclient.New(timeout, baseURLFor(models.PlatformTaskTracker, tasktracker.DefaultBaseURL))),
	}

	for platform, creds := range cfg.Platforms {
		if !creds.Enabled() {
			log.Printf("Platform %s has no OAuth credentials configured; adapter is wired but accounts can never be connected", platform)
		}
	}

	return adapters
}

// baseURLFor lets PLATFORM_BASE_URL override a provider's API origin (e.g.
// to point a platform adapter at a sandbox/staging host), falling back to
// the adapter package's documented default.
func baseURLFor(platform models.Platform, fallback string) string {
	if v := os.Getenv(strings.ToUpper(string(platform)) + "_BASE_URL"); v != "" {
		return v
	}
	return fallback
}

func redactDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		if u.User != nil {
			user := u.User.Username()
			if user == "" {
				user = "user"
			}
			u.User = url.UserPassword(user, "****")
		}
		u.RawQuery = ""
		return u.String()
	}

	re := regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/?#]+):([^@]+)@`)
	if re.MatchString(raw) {
		return re.ReplaceAllString(raw, `$1:****@`)
	}
	return raw
}
