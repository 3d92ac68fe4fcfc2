package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/himera-dialogs/internal/bot"
	"github.com/Proton-105/himera-dialogs/internal/command"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	"github.com/Proton-105/himera-dialogs/internal/health"
	"github.com/Proton-105/himera-dialogs/internal/jobs"
	jobhandlers "github.com/Proton-105/himera-dialogs/internal/jobs/handlers"
	"github.com/Proton-105/himera-dialogs/internal/lifecycle"
	"github.com/Proton-105/himera-dialogs/internal/middleware"
	"github.com/Proton-105/himera-dialogs/internal/poll"
	"github.com/Proton-105/himera-dialogs/internal/state"
	"github.com/Proton-105/himera-dialogs/pkg/config"
	"github.com/Proton-105/himera-dialogs/pkg/graceful"
	"github.com/Proton-105/himera-dialogs/pkg/logger"
	"github.com/Proton-105/himera-dialogs/pkg/metrics"
	"github.com/Proton-105/himera-dialogs/pkg/redis"
)

const readHeaderTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flushSentry, err := logger.InitSentry(*cfg)
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer flushSentry()

	log := logger.New(*cfg)
	slog.SetDefault(log)
	config.Watch(v, log, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
	})

	log.Info("starting dialogs bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("http_port", cfg.Server.Port),
	)

	shutdown := lifecycle.NewShutdown(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdown.Execute(shutdownCtx); err != nil {
			log.Error("shutdown finished with errors", slog.Any("error", err))
		}
	}()

	checker := health.NewChecker(log)

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		checker.AddCheck("redis", health.NewRedisChecker(redisClient))
	}

	stores, err := openStores(ctx, *cfg, redisClient, log, shutdown, checker)
	if err != nil {
		return err
	}

	tb, err := bot.NewTelebot(*cfg)
	if err != nil {
		return err
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	messenger := bot.NewMessenger(tb)

	dialogs := dialog.New(stores.dialogs, messenger,
		dialog.WithLogger(log),
		dialog.WithTokens(dialog.RandomTokens{Length: cfg.Dialogs.TokenLength}),
		dialog.WithDeleteTimeout(cfg.Dialogs.DeleteTimeout),
	).Register(demoDialogs()...)

	polls := poll.New(stores.polls, messenger, poll.WithLogger(log)).Register(demoPolls()...)

	parser := newDemoParser(messenger, command.WithLogger(log))

	b := bot.New(tb, *cfg, log,
		bot.Engines{Dialogs: dialogs, Polls: polls, Parser: parser},
		newGuards(*cfg, redisClient, log),
	)
	registerDemoCommands(b.Router(), polls)

	if err := startCleanup(ctx, *cfg, redisClient, stores, log, shutdown); err != nil {
		return err
	}

	go metrics.NewStateCollector(stores.dialogs, stores.polls, 0, log).Run(ctx)

	httpHandler := logger.Middleware(middleware.HTTPLogging(log)(graceful.NewMux(checker.Handler())))
	server := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: readHeaderTimeout,
	}, cfg.Server.ShutdownTimeout)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe(ctx) }()

	go b.Start()
	shutdown.Register("bot", func(context.Context) error {
		b.Stop()
		return nil
	})

	select {
	case <-ctx.Done():
		log.Info("dialogs bot shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	return nil
}

func newGuards(cfg config.Config, client *goredis.Client, log *slog.Logger) bot.Guards {
	if client == nil {
		return bot.Guards{
			Throttle: middleware.NewThrottle(middleware.NewMemoryCache(), cfg.Dialogs.ThrottleWindow, log),
			Locker:   middleware.NewLocalLocker(),
		}
	}

	return bot.Guards{
		Throttle: middleware.NewThrottle(middleware.NewRedisCache(client, cfg.Storage.KeyPrefix), cfg.Dialogs.ThrottleWindow, log),
		Locker:   middleware.NewRedisLocker(client, cfg.Storage.KeyPrefix, 0, log),
	}
}

// startCleanup schedules stale state removal through asynq when Redis is
// available and falls back to an in-process ticker otherwise.
func startCleanup(ctx context.Context, cfg config.Config, client *goredis.Client, stores *stateStores, log *slog.Logger, shutdown *lifecycle.Shutdown) error {
	if !cfg.Cleanup.Enabled {
		return nil
	}

	cleaner := state.NewCleaner(stores.sweepers, log, cfg.Cleanup.MaxAge, cfg.Cleanup.Interval)

	if client == nil {
		go cleaner.Run(ctx)
		return nil
	}

	redisOpt := cfg.Redis.AsynqOpt()

	worker := jobs.NewWorker(redisOpt, jobs.DefaultQueues, log)
	worker.RegisterHandler(jobs.TaskTypeStateCleanup, jobhandlers.NewStateCleanupHandler(cleaner, cfg.Cleanup.MaxAge, log))
	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()
	shutdown.Register("jobs worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(redisOpt, cfg.Cleanup.Schedule, cfg.Cleanup.MaxAge, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register cleanup schedule: %w", err)
	}
	scheduler.Run()
	shutdown.Register("jobs scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	manager := jobs.NewManager(redisOpt, log)
	shutdown.Register("jobs client", func(context.Context) error { return manager.Close() })
	if err := manager.EnqueueStateCleanup(ctx, cfg.Cleanup.MaxAge); err != nil {
		log.Warn("failed to enqueue startup cleanup", slog.Any("error", err))
	}

	return nil
}
