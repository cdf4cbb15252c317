// Package config loads configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/razvandimescu/docreader/internal/cache"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/prefs"
	"github.com/razvandimescu/docreader/internal/search"
)

// Config holds all server configuration.
type Config struct {
	// Server
	DocumentRoot string
	ListenAddr   string
	MetricsAddr  string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Derivation cache
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Search
	SearchDefaultLimit int
	SearchMaxLimit     int

	// Preferences
	PreferencesFile string

	WatchRoot bool

	// Auth (optional; empty disables the gate)
	AuthHeader string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DocumentRoot:       envOr("DOCUMENT_ROOT", ""),
		ListenAddr:         envOr("LISTEN_ADDR", ":6419"),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogFormat:          envOr("LOG_FORMAT", "json"),
		LogFile:            envOr("LOG_FILE", ""),
		CacheTTL:           envDuration("CACHE_TTL", cache.DefaultTTL),
		CacheMaxEntries:    envInt("CACHE_MAX_ENTRIES", cache.DefaultMaxEntries),
		SearchDefaultLimit: envInt("SEARCH_DEFAULT_LIMIT", search.DefaultLimit),
		SearchMaxLimit:     envInt("SEARCH_MAX_LIMIT", search.MaxLimit),
		PreferencesFile:    envOr("PREFERENCES_FILE", prefs.DefaultFileName),
		WatchRoot:          envBool("WATCH_ROOT", true),
		AuthHeader:         envOr("AUTH_HEADER", ""),
	}
	// An explicitly empty METRICS_ADDR disables the metrics listener.
	if _, set := os.LookupEnv("METRICS_ADDR"); !set {
		cfg.MetricsAddr = ":9090"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks config values for correctness and reports every problem.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, "CACHE_TTL must be > 0")
	}
	if c.CacheMaxEntries < 1 {
		errs = append(errs, "CACHE_MAX_ENTRIES must be >= 1")
	}
	if c.SearchDefaultLimit < 1 {
		errs = append(errs, "SEARCH_DEFAULT_LIMIT must be >= 1")
	}
	if c.SearchMaxLimit < 1 {
		errs = append(errs, "SEARCH_MAX_LIMIT must be >= 1")
	}
	if c.SearchDefaultLimit > c.SearchMaxLimit {
		errs = append(errs, "SEARCH_DEFAULT_LIMIT must be <= SEARCH_MAX_LIMIT")
	}
	if c.PreferencesFile == "" || strings.ContainsAny(c.PreferencesFile, `/\`) {
		errs = append(errs, "PREFERENCES_FILE must be a plain file name")
	}

	if len(errs) > 0 {
		return errors.New("invalid configuration:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
