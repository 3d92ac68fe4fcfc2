package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/pkg/metrics"
)

// Throttle drops a callback when the same user already pressed a button
// with the same data in the same chat within the window.
type Throttle struct {
	cache  Cache
	window time.Duration
	log    *slog.Logger
}

func NewThrottle(cache Cache, window time.Duration, log *slog.Logger) *Throttle {
	if log == nil {
		log = slog.Default()
	}

	return &Throttle{cache: cache, window: window, log: log}
}

// Allow reports whether the callback should be handled and remembers it when so.
// Cache failures never block a callback.
func (t *Throttle) Allow(ctx context.Context, chatID, userID int64, data string) bool {
	if t.cache == nil || t.window <= 0 || data == "" {
		return true
	}

	key := fmt.Sprintf("throttle:%d:%d", chatID, userID)

	last, found, err := t.cache.Get(ctx, key)
	if err != nil {
		t.log.WarnContext(ctx, "throttle cache read failed", slog.String("key", key), slog.Any("error", err))
		return true
	}
	if found && last == data {
		metrics.RecordThrottled()
		return false
	}

	if err := t.cache.Set(ctx, key, data, t.window); err != nil {
		t.log.WarnContext(ctx, "throttle cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return true
}

// Middleware applies the throttle to callback updates.
func (t *Throttle) Middleware() handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			cb := c.Callback()
			if cb == nil || c.Sender() == nil || c.Chat() == nil {
				return next(c)
			}

			ctx := handlers.Context(c)
			if t.Allow(ctx, c.Chat().ID, c.Sender().ID, cb.Data) {
				return next(c)
			}

			t.log.DebugContext(ctx, "repeated callback dropped",
				slog.Int64("chat_id", c.Chat().ID),
				slog.Int64("user_id", c.Sender().ID),
			)
			return c.Respond()
		}
	}
}
