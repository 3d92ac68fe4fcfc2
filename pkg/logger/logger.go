// Package logger builds the application slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/himera-dialogs/pkg/config"
)

// level is shared by every logger built by New so that SetLevel applies to
// all of them.
var level slog.LevelVar

// New creates a logger configured by cfg: JSON or text output to stdout,
// optionally mirrored into a rotated file, with sensitive attributes masked
// and errors forwarded to Sentry when it is enabled.
func New(cfg config.Config) *slog.Logger {
	level.Set(ParseLevel(cfg.Logger.Level))

	var out io.Writer = os.Stdout
	if cfg.Logger.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: &level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		handler = NewFanoutHandler(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
	}

	log := slog.New(NewMaskingHandler(handler))
	if cfg.AppEnv != "" {
		log = log.With(slog.String("env", cfg.AppEnv))
	}

	return log
}

// SetLevel changes the level of every logger built by New.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// InitSentry configures the global Sentry client. The returned function
// flushes buffered events and must be called on shutdown.
func InitSentry(cfg config.Config) (func(), error) {
	if !cfg.Sentry.Enabled {
		return func() {}, nil
	}

	env := cfg.Sentry.Environment
	if env == "" {
		env = cfg.AppEnv
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      env,
		SampleRate:       cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}
