package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/himera-dialogs/internal/jobs"
)

// Sweeper removes conversations idle for longer than maxAge.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) int
}

type StateCleanupHandler struct {
	sweeper       Sweeper
	defaultMaxAge time.Duration
	log           *slog.Logger
}

func NewStateCleanupHandler(sweeper Sweeper, defaultMaxAge time.Duration, log *slog.Logger) *StateCleanupHandler {
	if log == nil {
		log = slog.Default()
	}

	return &StateCleanupHandler{sweeper: sweeper, defaultMaxAge: defaultMaxAge, log: log}
}

func (h *StateCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.StateCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "state cleanup: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode %s payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}

	maxAge := payload.MaxAge
	if maxAge <= 0 {
		maxAge = h.defaultMaxAge
	}

	removed := h.sweeper.Sweep(ctx, maxAge)
	h.log.InfoContext(ctx, "state cleanup finished",
		slog.String("task_type", t.Type()),
		slog.Duration("max_age", maxAge),
		slog.Int("removed", removed),
	)

	return ctx.Err()
}
