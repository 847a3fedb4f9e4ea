// Package config loads the process configuration from the environment into
// a typed struct, with explicit per-field parsing and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pulsetrail/aggregator/internal/models"
)

// PlatformCredentials is the CLIENT_ID/CLIENT_SECRET pair for one platform's
// OAuth app. A platform is "enabled" iff both are non-empty.
type PlatformCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c PlatformCredentials) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config is the fully resolved process configuration.
type Config struct {
	DatabaseURL   string
	EncryptionKey string
	AppURL        string
	FrontendURL   string

	Platforms map[models.Platform]PlatformCredentials

	SchedulerTickInterval time.Duration
	SchedulerWorkerCount  int
	SchedulerTickBudget   time.Duration

	HTTPClientTimeout time.Duration

	APIPort           int
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIJWTSecret      string
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		AppURL:      getEnv("APP_URL", "http://localhost:8787"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:4321"),

		SchedulerTickInterval: getEnvSeconds("SCHEDULER_TICK_INTERVAL_SECONDS", 300),
		SchedulerWorkerCount:  getEnvInt("SCHEDULER_WORKER_COUNT", 16),
		SchedulerTickBudget:   getEnvSeconds("SCHEDULER_TICK_BUDGET_SECONDS", 240),

		HTTPClientTimeout: getEnvSeconds("HTTP_CLIENT_TIMEOUT_SECONDS", 20),

		APIPort:           getEnvInt("API_PORT", 8787),
		APIRateLimitRPS:   getEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst: getEnvInt("API_RATE_LIMIT_BURST", 20),
		APIJWTSecret:      os.Getenv("API_JWT_SECRET"),

		Platforms: map[models.Platform]PlatformCredentials{},
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	if len(cfg.EncryptionKey) < 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be at least 32 bytes")
	}

	for platform, prefix := range platformEnvPrefix {
		cfg.Platforms[platform] = PlatformCredentials{
			ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
			ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		}
	}

	return cfg, nil
}

var platformEnvPrefix = map[models.Platform]string{
	models.PlatformCodeHost:    "GITHUB",
	models.PlatformShortFeed:   "SHORTFEED",
	models.PlatformVideo:       "VIDEO",
	models.PlatformLinkAgg:     "LINKAGG",
	models.PlatformMicroBlog:   "MICROBLOG",
	models.PlatformTaskTracker: "TASKTRACKER",
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
