package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"DOCUMENT_ROOT", "LISTEN_ADDR", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	"LOG_FILE", "CACHE_TTL", "CACHE_MAX_ENTRIES", "SEARCH_DEFAULT_LIMIT",
	"SEARCH_MAX_LIMIT", "PREFERENCES_FILE", "WATCH_ROOT", "AUTH_HEADER",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DocumentRoot)
	assert.Equal(t, ":6419", cfg.ListenAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.CacheMaxEntries)
	assert.Equal(t, 50, cfg.SearchDefaultLimit)
	assert.Equal(t, 200, cfg.SearchMaxLimit)
	assert.Equal(t, ".docreader-preferences.json", cfg.PreferencesFile)
	assert.True(t, cfg.WatchRoot)
	assert.Empty(t, cfg.AuthHeader)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCUMENT_ROOT", "/srv/docs")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "10")
	t.Setenv("WATCH_ROOT", "false")
	t.Setenv("AUTH_HEADER", "X-Authenticated")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/docs", cfg.DocumentRoot)
	assert.Empty(t, cfg.MetricsAddr, "explicit empty disables metrics")
	assert.Equal(t, "console", cfg.Logging().Format)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 10, cfg.SearchDefaultLimit)
	assert.False(t, cfg.WatchRoot)
	assert.Equal(t, "X-Authenticated", cfg.AuthHeader)
}

func TestMalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("CACHE_MAX_ENTRIES", "many")
	t.Setenv("WATCH_ROOT", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.CacheMaxEntries)
	assert.True(t, cfg.WatchRoot)
}

func TestValidateAccumulates(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "500")
	t.Setenv("CACHE_MAX_ENTRIES", "0")
	t.Setenv("PREFERENCES_FILE", "../escape.json")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "LOG_FORMAT")
	assert.Contains(t, msg, "SEARCH_DEFAULT_LIMIT must be <= SEARCH_MAX_LIMIT")
	assert.Contains(t, msg, "CACHE_MAX_ENTRIES")
	assert.Contains(t, msg, "PREFERENCES_FILE")
}
