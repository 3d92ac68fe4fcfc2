package bot

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	errors "github.com/Proton-105/himera-dialogs/internal/errors"
)

type fakeAPI struct {
	sendCalls int
	lastTo    telebot.Recipient
	lastOpts  *telebot.SendOptions
	edited    telebot.Editable
	deleted   telebot.Editable
	sendErr   error
	editErr   error
}

func (f *fakeAPI) Send(to telebot.Recipient, _ interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.sendCalls++
	f.lastTo = to
	if len(opts) > 0 {
		f.lastOpts, _ = opts[0].(*telebot.SendOptions)
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &telebot.Message{ID: 77}, nil
}

func (f *fakeAPI) Edit(msg telebot.Editable, _ interface{}, _ ...interface{}) (*telebot.Message, error) {
	f.edited = msg
	return nil, f.editErr
}

func (f *fakeAPI) Delete(msg telebot.Editable) error {
	f.deleted = msg
	return nil
}

func TestMessenger_Send(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)

	id, err := m.Send(context.Background(), 100, "hi", &chat.Extra{
		ParseMode:      chat.ParseModeHTML,
		DisablePreview: true,
		Keyboard:       [][]chat.Button{{{Text: "A", Data: "tok1"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 77, id)
	assert.Equal(t, "100", api.lastTo.Recipient())

	require.NotNil(t, api.lastOpts)
	assert.Equal(t, telebot.ModeHTML, api.lastOpts.ParseMode)
	assert.True(t, api.lastOpts.DisableWebPagePreview)
	markup, ok := api.lastOpts.ReplyMarkup, api.lastOpts.ReplyMarkup != nil
	if assert.True(t, ok) {
		assert.Equal(t, "tok1", markup.InlineKeyboard[0][0].Data)
	}
}

func TestMessenger_SendErrorIsNotRetried(t *testing.T) {
	api := &fakeAPI{sendErr: stdErrors.New("chat not found")}
	m := NewMessenger(api)

	_, err := m.Send(context.Background(), 100, "hi", nil)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.CodeExternalAPI, appErr.Code)
	assert.False(t, appErr.Retryable)
	assert.Equal(t, 1, api.sendCalls)
}

func TestMessenger_EditAndDelete(t *testing.T) {
	api := &fakeAPI{editErr: telebot.ErrMessageNotModified}
	m := NewMessenger(api)
	ctx := context.Background()

	require.NoError(t, m.Edit(ctx, 100, 5, "same", nil))
	messageID, chatID := api.edited.MessageSig()
	assert.Equal(t, "5", messageID)
	assert.Equal(t, int64(100), chatID)

	require.NoError(t, m.Delete(ctx, 100, 6))
	messageID, _ = api.deleted.MessageSig()
	assert.Equal(t, "6", messageID)
}
