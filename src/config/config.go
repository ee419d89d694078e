package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	DefaultDailyLimit   = 10
	DefaultSignedURLTTL = 10 * time.Second
	DefaultStreamURLTTL = 300 * time.Second
)

var Config GalleryConfig

func init() {
	// A missing .env is normal in production; the process environment wins anyway.
	_ = godotenv.Load()
	Config = Load(os.Getenv)
}

// Load builds the configuration from environment lookups. Unparseable values
// silently fall back to defaults; nothing is validated beyond that.
func Load(getenv func(string) string) GalleryConfig {
	cfg := GalleryConfig{
		Env:      Dev,
		Addr:     ":9001",
		BaseUrl:  "http://localhost:9001",
		LogLevel: zerolog.InfoLevel,
		Postgres: PostgresConfig{
			User:     "gallery",
			Password: "password",
			Hostname: "localhost",
			Port:     5432,
			DbName:   "gallery",
			LogLevel: tracelog.LogLevelWarn,
			MinConn:  2,
			MaxConn:  20,
		},
		Backend: BackendConfig{
			Url:    "http://localhost:9003",
			Region: "us-east-1",
			Bucket: "illustrations-private",
		},
		Quota: QuotaConfig{
			DailyLimit:     DefaultDailyLimit,
			Policy:         "union",
			RetentionDays:  7,
			BurstPerSecond: 1,
			// Enough for a visitor to spend a whole day's quota in one go
			// and still look it up afterwards.
			Burst:          2 * DefaultDailyLimit,
		},
		Downloads: DownloadConfig{
			SignedURLTTL: DefaultSignedURLTTL,
			StreamURLTTL: DefaultStreamURLTTL,
		},
	}

	if v := getenv("GALLERY_ENV"); v != "" {
		cfg.Env = Environment(v)
	}
	if v := getenv("GALLERY_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("GALLERY_BASE_URL"); v != "" {
		cfg.BaseUrl = strings.TrimSuffix(v, "/")
	}
	if v := getenv("GALLERY_LOG_LEVEL"); v != "" {
		if level, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = level
		}
	}
	if v := getenv("GALLERY_ADMIN_EMAILS"); v != "" {
		for _, email := range strings.Split(v, ",") {
			if email = strings.TrimSpace(email); email != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, email)
			}
		}
	}

	if v := getenv("GALLERY_DB_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := getenv("GALLERY_DB_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := getenv("GALLERY_DB_HOST"); v != "" {
		cfg.Postgres.Hostname = v
	}
	if v := parseInt(getenv("GALLERY_DB_PORT")); v > 0 {
		cfg.Postgres.Port = v
	}
	if v := getenv("GALLERY_DB_NAME"); v != "" {
		cfg.Postgres.DbName = v
	}
	if v := getenv("GALLERY_DB_LOG_LEVEL"); v != "" {
		if level, err := tracelog.LogLevelFromString(v); err == nil {
			cfg.Postgres.LogLevel = level
		}
	}
	if v := parseInt(getenv("GALLERY_DB_MIN_CONN")); v > 0 {
		cfg.Postgres.MinConn = int32(v)
	}
	if v := parseInt(getenv("GALLERY_DB_MAX_CONN")); v > 0 {
		cfg.Postgres.MaxConn = int32(v)
	}

	if v := getenv("GALLERY_BACKEND_URL"); v != "" {
		cfg.Backend.Url = v
	}
	if v := getenv("GALLERY_BACKEND_SERVICE_KEY"); v != "" {
		cfg.Backend.ServiceKey = v
	}
	if v := getenv("GALLERY_BACKEND_ANON_KEY"); v != "" {
		cfg.Backend.AnonKey = v
	}
	if v := getenv("GALLERY_REGION"); v != "" {
		cfg.Backend.Region = v
	}
	if v := getenv("GALLERY_BUCKET"); v != "" {
		cfg.Backend.Bucket = v
	}

	if v := parseInt(getenv("GALLERY_DAILY_LIMIT")); v > 0 {
		cfg.Quota.DailyLimit = v
	}
	if v := getenv("GALLERY_QUOTA_POLICY"); v != "" {
		cfg.Quota.Policy = v
	}
	if v := parseInt(getenv("GALLERY_QUOTA_RETENTION_DAYS")); v > 0 {
		cfg.Quota.RetentionDays = v
	}
	if v, err := strconv.ParseFloat(getenv("GALLERY_BURST_PER_SECOND"), 64); err == nil && v > 0 {
		cfg.Quota.BurstPerSecond = v
	}
	if v := parseInt(getenv("GALLERY_BURST")); v > 0 {
		cfg.Quota.Burst = v
	}

	if v := parseDuration(getenv("GALLERY_SIGNED_TTL")); v > 0 {
		cfg.Downloads.SignedURLTTL = v
	}
	if v := parseDuration(getenv("GALLERY_STREAM_TTL")); v > 0 {
		cfg.Downloads.StreamURLTTL = v
	}

	return cfg
}

func parseInt(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}
