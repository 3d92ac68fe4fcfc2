package logger

import (
	"context"
	"errors"
	"log/slog"
)

// FanoutHandler passes every record to all handlers that accept its level.
type FanoutHandler struct {
	handlers []slog.Handler
}

func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

func (h *FanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		out[i] = next.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: out}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		out[i] = next.WithGroup(name)
	}
	return &FanoutHandler{handlers: out}
}
