package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	schedule       string
	maxAge         time.Duration
	log            *slog.Logger
}

// NewScheduler creates a scheduler that enqueues state cleanup on the given
// cron expression (e.g. "@every 1h" or "0 * * * *").
func NewScheduler(redisOpt asynq.RedisConnOpt, schedule string, maxAge time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		schedule:       schedule,
		maxAge:         maxAge,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewStateCleanupTask(s.maxAge)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.schedule, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered state cleanup task",
		slog.String("schedule", s.schedule),
		slog.Duration("max_age", s.maxAge),
	)

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
