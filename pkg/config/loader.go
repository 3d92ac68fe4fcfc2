package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"logger.level":               "info",
	"logger.format":              "json",
	"logger.file":                "",
	"logger.max_size_mb":         100,
	"logger.max_backups":         5,
	"logger.max_age_days":        14,
	"sentry.enabled":             false,
	"sentry.dsn":                 "",
	"sentry.environment":         "",
	"sentry.sample_rate":         1.0,
	"bot.token":                  "",
	"bot.mode":                   "polling",
	"bot.timeout":                10 * time.Second,
	"bot.webhook_listen":         ":8443",
	"bot.webhook_url":            "",
	"server.port":                ":8080",
	"server.shutdown_timeout":    10 * time.Second,
	"storage.driver":             StorageMemory,
	"storage.key_prefix":         "dialogs",
	"storage.ttl":                0,
	"redis.addr":                 "",
	"redis.password":             "",
	"redis.db":                   0,
	"redis.pool_size":            10,
	"redis.min_idle_conns":       2,
	"redis.pool_timeout":         4 * time.Second,
	"redis.idle_timeout":         5 * time.Minute,
	"redis.max_retries":          3,
	"redis.min_retry_backoff":    8 * time.Millisecond,
	"redis.max_retry_backoff":    512 * time.Millisecond,
	"postgres.dsn":               "",
	"postgres.max_open_conns":    10,
	"postgres.max_idle_conns":    5,
	"postgres.conn_max_lifetime": 30 * time.Minute,
	"postgres.migrate":           true,
	"dialogs.token_length":       10,
	"dialogs.throttle_window":    time.Second,
	"dialogs.lock_timeout":       5 * time.Second,
	"dialogs.delete_timeout":     10 * time.Second,
	"cleanup.enabled":            true,
	"cleanup.max_age":            72 * time.Hour,
	"cleanup.schedule":           "@every 1h",
	"cleanup.interval":           time.Hour,
}

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// missing env files are fine outside local development
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(v.ConfigFileUsed()); !os.IsNotExist(statErr) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// Watch reloads the config file on change and passes every valid revision to
// onChange. Invalid revisions are logged and ignored.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			log.Warn("ignoring invalid config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		cfg.AppEnv = os.Getenv("APP_ENV")

		log.Info("config reloaded", slog.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
