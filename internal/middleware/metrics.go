package middleware

import (
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/pkg/metrics"
)

// Metrics measures handling time and status of updates, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordUpdate(updateKind(c), status, time.Since(start))

		return err
	}
}

func updateKind(c telebot.Context) string {
	switch {
	case c == nil:
		return "unknown"
	case c.Callback() != nil:
		return "callback"
	case c.Message() != nil:
		return "message"
	default:
		return "other"
	}
}
