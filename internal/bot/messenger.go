package bot

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
	"github.com/Proton-105/himera-dialogs/internal/chat"
	errors "github.com/Proton-105/himera-dialogs/internal/errors"
)

const telegramAPI = "telegram"

// API is the part of telebot.Bot used to deliver messages.
type API interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Delete(msg telebot.Editable) error
}

// Messenger implements chat.Messenger on top of the Telegram Bot API.
// Requests rejected by flood control are retried with backoff.
type Messenger struct {
	api API
}

var _ chat.Messenger = (*Messenger)(nil)

func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, text string, extra *chat.Extra) (int, error) {
	var sent *telebot.Message
	err := errors.WithRetry(ctx, func() error {
		msg, err := m.api.Send(telebot.ChatID(chatID), text, sendOptions(extra))
		if err != nil {
			return wrapAPIError("send message", err)
		}
		sent = msg
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent == nil {
		return 0, errors.NewExternalAPIError(telegramAPI, false, stdErrors.New("send message: empty response"))
	}

	return sent.ID, nil
}

// Edit treats "message is not modified" as success.
func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, text string, extra *chat.Extra) error {
	return errors.WithRetry(ctx, func() error {
		_, err := m.api.Edit(storedMessage(chatID, messageID), text, sendOptions(extra))
		if err == nil || stdErrors.Is(err, telebot.ErrMessageNotModified) {
			return nil
		}
		return wrapAPIError("edit message", err)
	})
}

func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	return errors.WithRetry(ctx, func() error {
		if err := m.api.Delete(storedMessage(chatID, messageID)); err != nil {
			return wrapAPIError("delete message", err)
		}
		return nil
	})
}

func storedMessage(chatID int64, messageID int) telebot.StoredMessage {
	return telebot.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
}

func sendOptions(extra *chat.Extra) *telebot.SendOptions {
	opts := &telebot.SendOptions{}
	if extra == nil {
		return opts
	}

	opts.ParseMode = telebot.ParseMode(extra.ParseMode)
	opts.DisableWebPagePreview = extra.DisablePreview
	opts.ReplyMarkup = keyboard.Markup(extra.Keyboard)

	return opts
}

func wrapAPIError(op string, err error) error {
	var flood telebot.FloodError
	if stdErrors.As(err, &flood) {
		return errors.NewFloodError(telegramAPI, time.Duration(flood.RetryAfter)*time.Second, fmt.Errorf("%s: %w", op, err))
	}

	return errors.NewExternalAPIError(telegramAPI, false, fmt.Errorf("%s: %w", op, err))
}
