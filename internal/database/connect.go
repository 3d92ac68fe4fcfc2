package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Proton-105/himera-dialogs/pkg/config"
)

const connectTimeout = 5 * time.Second

// Connect opens the Postgres pool, configures it and verifies connectivity.
func Connect(ctx context.Context, cfg config.PostgresConfig, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		log.ErrorContext(ctx, "db connect failed",
			slog.String("driver", "postgres"),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	log.InfoContext(ctx, "db connected",
		slog.String("driver", "postgres"),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Duration("duration", time.Since(start)),
	)

	return db, nil
}
