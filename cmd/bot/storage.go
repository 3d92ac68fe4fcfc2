package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/himera-dialogs/internal/database"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	"github.com/Proton-105/himera-dialogs/internal/health"
	"github.com/Proton-105/himera-dialogs/internal/lifecycle"
	"github.com/Proton-105/himera-dialogs/internal/poll"
	"github.com/Proton-105/himera-dialogs/internal/state"
	"github.com/Proton-105/himera-dialogs/pkg/config"
)

const (
	kindDialogs = "dialogs"
	kindPolls   = "polls"
)

type stateStores struct {
	dialogs  state.Store[dialog.State]
	polls    state.Store[poll.State]
	sweepers map[string]state.Sweeper
}

func openStores(
	ctx context.Context,
	cfg config.Config,
	client *goredis.Client,
	log *slog.Logger,
	shutdown *lifecycle.Shutdown,
	checker *health.Checker,
) (*stateStores, error) {
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		if client == nil {
			return nil, fmt.Errorf("redis storage selected without a redis client")
		}
		dialogs := state.NewRedisStore[dialog.State](client, cfg.Storage.KeyPrefix+":"+kindDialogs, cfg.Storage.TTL, log)
		polls := state.NewRedisStore[poll.State](client, cfg.Storage.KeyPrefix+":"+kindPolls, cfg.Storage.TTL, log)
		return newStateStores(dialogs, polls), nil

	case config.StoragePostgres:
		db, err := database.Connect(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })
		checker.AddCheck("postgres", health.NewDBChecker(db))

		if cfg.Postgres.Migrate {
			if _, err := database.NewMigrator(db.DB, log).Apply(ctx, database.Migrations()); err != nil {
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}

		dialogs := state.NewPostgresStore[dialog.State](db, kindDialogs, log)
		polls := state.NewPostgresStore[poll.State](db, kindPolls, log)
		return newStateStores(dialogs, polls), nil

	default:
		return newStateStores(state.NewMemoryStore[dialog.State](), state.NewMemoryStore[poll.State]()), nil
	}
}

type sweepingStore[T any] interface {
	state.Store[T]
	state.Sweeper
}

func newStateStores(dialogs sweepingStore[dialog.State], polls sweepingStore[poll.State]) *stateStores {
	return &stateStores{
		dialogs: dialogs,
		polls:   polls,
		sweepers: map[string]state.Sweeper{
			kindDialogs: dialogs,
			kindPolls:   polls,
		},
	}
}
