package config

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type GalleryConfig struct {
	Env         Environment
	Addr        string
	BaseUrl     string
	LogLevel    zerolog.Level
	AdminEmails []string
	Postgres    PostgresConfig
	Backend     BackendConfig
	Quota       QuotaConfig
	Downloads   DownloadConfig
}

type PostgresConfig struct {
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

// The hosted object store holding the illustration files. Anything that speaks
// the S3 API works, including `gallery localstore` for development.
type BackendConfig struct {
	Url        string
	ServiceKey string // privileged secret, never sent to clients
	AnonKey    string // public access key id
	Region     string
	Bucket     string
}

type QuotaConfig struct {
	DailyLimit int
	Policy     string // "network", "identifier", or "union"

	// How many days of per-day counters to keep around before pruning.
	RetentionDays int

	// Short-term burst protection on the download endpoints, per network address.
	BurstPerSecond float64
	Burst          int
}

type DownloadConfig struct {
	SignedURLTTL time.Duration
	StreamURLTTL time.Duration
}

func (c GalleryConfig) IsAdminEmail(email string) bool {
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}
