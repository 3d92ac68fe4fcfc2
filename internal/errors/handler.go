package errors

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/pkg/logger"
)

const defaultUserMessage = "Произошла ошибка. Попробуйте позже"

var errorRecorder = func(code, severity string) {}

// RegisterErrorRecorder lets metrics observe every error passing through a Handler.
func RegisterErrorRecorder(recorder func(code, severity string)) {
	if recorder == nil {
		errorRecorder = func(string, string) {}
		return
	}

	errorRecorder = recorder
}

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err, reports severe errors to Sentry and returns the message to
// show the user together with the retryable flag.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	attrs := contextAttrs(ctx)

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs = append(attrs,
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		)
		if cause := appErr.Unwrap(); cause != nil {
			attrs = append(attrs, slog.Any("cause", cause))
		}

		errorRecorder(appErr.Code, string(appErr.Severity))

		level := slog.LevelError
		if appErr.Severity == SeverityLow {
			level = slog.LevelWarn
		}
		log.LogAttrs(ctx, level, "application error", attrs...)

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(ctx, err)
		}

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = defaultUserMessage
		}

		return userMessage, appErr.Retryable
	}

	attrs = append(attrs,
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
		slog.Bool("retryable", false),
	)

	errorRecorder("unknown", string(SeverityHigh))
	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)

	if h.sentryEnabled {
		h.sendToSentry(ctx, err)
	}

	return defaultUserMessage, false
}

func (h *Handler) sendToSentry(ctx context.Context, err error) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		if upd := chat.UpdateFromContext(ctx); upd != nil {
			scope.SetTag("chat_id", strconv.FormatInt(upd.ChatID, 10))
			scope.SetTag("update_kind", upd.Kind.String())
			if upd.Sender != nil {
				scope.SetUser(sentry.User{
					ID:       strconv.FormatInt(upd.Sender.ID, 10),
					Username: upd.Sender.Username,
				})
			}
		}

		hub.CaptureException(err)
	})
}

func contextAttrs(ctx context.Context) []slog.Attr {
	attrs := make([]slog.Attr, 0, 8)

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if upd := chat.UpdateFromContext(ctx); upd != nil {
		attrs = append(attrs,
			slog.Int64("chat_id", upd.ChatID),
			slog.Int64("user_id", upd.SenderID()),
		)
	}

	return attrs
}
