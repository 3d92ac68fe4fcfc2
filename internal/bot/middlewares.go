package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/internal/chat"
	errors "github.com/Proton-105/himera-dialogs/internal/errors"
	"github.com/Proton-105/himera-dialogs/pkg/logger"
)

const defaultUserMessage = "Произошла ошибка. Попробуйте позже"

// ContextMiddleware derives the request context for an update from base,
// tagging it with a correlation id and the converted update.
func ContextMiddleware(base func() context.Context) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			ctx := context.Background()
			if base != nil {
				ctx = base()
			}

			ctx = logger.WithCorrelationID(ctx, uuid.NewString())
			ctx = chat.WithUpdate(ctx, NewUpdate(c))
			handlers.SetContext(c, ctx)

			return next(c)
		}
	}
}

// RecoveryMiddleware turns a panic into an internal error report and a
// notice to the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				ctx := handlers.Context(c)
				log.ErrorContext(ctx, "panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

				appErr := errors.NewInternalError(fmt.Errorf("panic recovered: %v", r))
				if notifyErr := notifyUser(c, userMessage(ctx, errHandler, appErr)); notifyErr != nil {
					log.ErrorContext(ctx, "failed to notify user about panic", slog.Any("error", notifyErr))
				}

				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler errors and answers the user
// instead of passing the error to telebot.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			_ = notifyUser(c, userMessage(handlers.Context(c), errHandler, err))
			return nil
		}
	}
}

func userMessage(ctx context.Context, errHandler *errors.Handler, err error) string {
	if errHandler == nil {
		return defaultUserMessage
	}
	if msg, _ := errHandler.Handle(ctx, err); msg != "" {
		return msg
	}
	return defaultUserMessage
}

// notifyUser shows text as an alert for button presses, so the keyboard
// message stays untouched, and as a chat message otherwise.
func notifyUser(c telebot.Context, text string) error {
	if c == nil {
		return nil
	}
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}

// LoggingMiddleware logs every update with its chat, sender and kind.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := handlers.Context(c)

			upd := chat.UpdateFromContext(ctx)
			if upd == nil {
				upd = NewUpdate(c)
			}

			attrs := []any{
				slog.Int64("chat_id", upd.ChatID),
				slog.Int64("user_id", upd.SenderID()),
				slog.String("kind", upd.Kind.String()),
			}
			if len(upd.Subtypes) > 0 {
				attrs = append(attrs, slog.String("subtype", upd.Subtypes[0]))
			}

			log.DebugContext(ctx, "handling update", attrs...)
			err := next(c)

			attrs = append(attrs, slog.Duration("duration", time.Since(start)))
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			log.InfoContext(ctx, "handled update", attrs...)

			return err
		}
	}
}
