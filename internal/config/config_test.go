package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PER_PAGE", "ENRICH_WORKERS", "BGG_API_BASE", "BGG_USER_AGENT", "DESCRIPTION_TIMEOUT", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24, cfg.PerPage)
	assert.Equal(t, 20, cfg.EnrichWorkers)
	assert.Equal(t, DefaultCatalogBaseURL, cfg.CatalogBaseURL)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.DescriptionTimeout)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PER_PAGE", "12")
	t.Setenv("DESCRIPTION_TIMEOUT", "750ms")
	t.Setenv("BGG_API_KEY", "secret")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 12, cfg.PerPage)
	assert.Equal(t, 750*time.Millisecond, cfg.DescriptionTimeout)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("PER_PAGE", "-3")
	t.Setenv("ENRICH_WORKERS", "lots")
	t.Setenv("WS_POLL_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 24, cfg.PerPage)
	assert.Equal(t, 20, cfg.EnrichWorkers)
	assert.Equal(t, 5*time.Second, cfg.WSPollInterval)
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, Config{LogLevel: in}.SlogLevel(), in)
	}
}
