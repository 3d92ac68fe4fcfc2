// Package config describes runtime settings of the dialogs bot.
package config

import (
	"errors"
	"time"

	"github.com/Proton-105/himera-dialogs/pkg/redis"
)

// Storage drivers for conversation state.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds runtime configuration.
type Config struct {
	AppEnv   string         `mapstructure:"app_env"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Bot      BotConfig      `mapstructure:"bot"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    redis.Config   `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Dialogs  DialogsConfig  `mapstructure:"dialogs"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	// File enables rotated file output in addition to stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
	// WebhookListen and WebhookURL are used in webhook mode.
	WebhookListen string `mapstructure:"webhook_listen"`
	WebhookURL    string `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
}

// ServerConfig configures the metrics and health HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory redis postgres"`
	// KeyPrefix namespaces Redis keys and Postgres kinds.
	KeyPrefix string        `mapstructure:"key_prefix" validate:"required"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type DialogsConfig struct {
	TokenLength    int           `mapstructure:"token_length" validate:"gte=6,lte=32"`
	ThrottleWindow time.Duration `mapstructure:"throttle_window"`
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`
	DeleteTimeout  time.Duration `mapstructure:"delete_timeout"`
}

// CleanupConfig controls removal of abandoned conversations.
type CleanupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Schedule string        `mapstructure:"schedule"`
	Interval time.Duration `mapstructure:"interval"`
}

// Validate checks rules that span several sections.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for redis storage")
		}
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for postgres storage")
		}
	}

	if c.Cleanup.Enabled && c.Cleanup.MaxAge <= 0 {
		return errors.New("cleanup.max_age must be positive when cleanup is enabled")
	}

	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Storage.Driver == StorageRedis || c.Redis.Addr != ""
}
