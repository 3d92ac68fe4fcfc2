package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdown runs hooks in reverse registration order, so components stop
// before the dependencies they were built on.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Execute runs every hook once, even after a failure or when ctx expires,
// and joins their errors. Hooks registered later run first.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	start := time.Now()
	s.log.InfoContext(ctx, "shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		hookStart := time.Now()
		if err := h.Fn(ctx); err != nil {
			s.log.ErrorContext(ctx, "shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}

		s.log.DebugContext(ctx, "shutdown hook completed", slog.String("hook", h.Name), slog.Duration("elapsed", time.Since(hookStart)))
	}

	s.log.InfoContext(ctx, "shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
