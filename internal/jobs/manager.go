package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// EnqueueStateCleanup asks the worker for an immediate cleanup run.
	EnqueueStateCleanup(ctx context.Context, maxAge time.Duration) error
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueStateCleanup treats a duplicate of a pending cleanup as success.
func (m *manager) EnqueueStateCleanup(ctx context.Context, maxAge time.Duration) error {
	task, err := NewStateCleanupTask(maxAge)
	if err != nil {
		return err
	}

	info, err := m.Enqueue(ctx, task)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		m.log.DebugContext(ctx, "state cleanup already queued")
		return nil
	case err != nil:
		return err
	}

	m.log.InfoContext(ctx, "state cleanup enqueued", slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
