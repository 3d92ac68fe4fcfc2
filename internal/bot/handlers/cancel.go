package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
)

const (
	cancelledText = "Действие отменено."
	nothingText   = "Нечего отменять."
)

// NewCancelHandler exits the sender's active dialog, if any.
func NewCancelHandler(dialogs *dialog.Dialogs, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		ctx := Context(c)

		upd := chat.UpdateFromContext(ctx)
		if upd == nil {
			upd = &chat.Update{Kind: chat.KindMessage, Sender: &chat.User{ID: c.Sender().ID}}
			if c.Chat() != nil {
				upd.ChatID = c.Chat().ID
			}
		}

		session, err := dialogs.Resume(ctx, upd)
		if err != nil {
			return err
		}

		if session.State() == nil {
			return c.Send(nothingText)
		}

		if err := session.Exit(ctx); err != nil {
			log.ErrorContext(ctx, "failed to exit dialog", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
			return err
		}

		return c.Send(cancelledText)
	}
}
