package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const workerShutdownTimeout = 15 * time.Second

// Worker processes background tasks such as stale-state cleanup.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker returns a worker consuming queues with their priorities,
// DefaultQueues when none are given. Cleanup tasks are cheap, so a couple
// of goroutines is enough.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if len(queues) == 0 {
		queues = DefaultQueues
	}
	log = log.With(slog.String("component", "jobs"))

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          queues,
		Concurrency:     2,
		RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
		ShutdownTimeout: workerShutdownTimeout,
		Logger:          newAsynqLogger(log),
		ErrorHandler:    taskErrorHandler(log),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks processing tasks until Shutdown.
func (w *worker) Run() error {
	w.log.Info("worker started")
	return w.server.Run(w.mux)
}

func (w *worker) Shutdown() {
	w.log.Info("worker stopping")
	w.server.Shutdown()
}

// taskErrorHandler logs failed attempts; the last one is logged as an error.
func taskErrorHandler(log *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		level := slog.LevelWarn
		if retried >= maxRetry {
			level = slog.LevelError
		}

		log.Log(ctx, level, "task failed",
			slog.String("type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		)
	})
}
