package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load(envFrom(nil))

	assert.Equal(t, Dev, cfg.Env)
	assert.Equal(t, 10, cfg.Quota.DailyLimit)
	assert.Equal(t, "union", cfg.Quota.Policy)
	assert.Equal(t, 20, cfg.Quota.Burst)
	assert.GreaterOrEqual(t, cfg.Quota.Burst, cfg.Quota.DailyLimit)
	assert.Equal(t, 10*time.Second, cfg.Downloads.SignedURLTTL)
	assert.Equal(t, 300*time.Second, cfg.Downloads.StreamURLTTL)
	assert.Empty(t, cfg.AdminEmails)
}

func TestLoadOverrides(t *testing.T) {
	cfg := Load(envFrom(map[string]string{
		"GALLERY_ENV":                 "live",
		"GALLERY_BASE_URL":            "https://example.com/",
		"GALLERY_LOG_LEVEL":           "debug",
		"GALLERY_ADMIN_EMAILS":        "a@example.com, b@example.com,,",
		"GALLERY_DB_PORT":             "6543",
		"GALLERY_BACKEND_URL":         "https://store.example.com",
		"GALLERY_BACKEND_SERVICE_KEY": "service",
		"GALLERY_BACKEND_ANON_KEY":    "anon",
		"GALLERY_DAILY_LIMIT":         "3",
		"GALLERY_QUOTA_POLICY":        "network",
		"GALLERY_SIGNED_TTL":          "15s",
	}))

	assert.Equal(t, Live, cfg.Env)
	assert.Equal(t, "https://example.com", cfg.BaseUrl)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.Equal(t, "https://store.example.com", cfg.Backend.Url)
	assert.Equal(t, "service", cfg.Backend.ServiceKey)
	assert.Equal(t, "anon", cfg.Backend.AnonKey)
	assert.Equal(t, 3, cfg.Quota.DailyLimit)
	assert.Equal(t, "network", cfg.Quota.Policy)
	assert.Equal(t, 15*time.Second, cfg.Downloads.SignedURLTTL)

	assert.True(t, cfg.IsAdminEmail("b@example.com"))
	assert.False(t, cfg.IsAdminEmail("c@example.com"))
}

func TestLoadIgnoresGarbage(t *testing.T) {
	cfg := Load(envFrom(map[string]string{
		"GALLERY_DAILY_LIMIT": "lots",
		"GALLERY_STREAM_TTL":  "forever",
		"GALLERY_LOG_LEVEL":   "loud",
	}))

	assert.Equal(t, DefaultDailyLimit, cfg.Quota.DailyLimit)
	assert.Equal(t, DefaultStreamURLTTL, cfg.Downloads.StreamURLTTL)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}
