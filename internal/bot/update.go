package bot

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/chat"
)

// NewUpdate converts the telebot context into a transport-neutral update.
func NewUpdate(c telebot.Context) *chat.Update {
	if c == nil {
		return nil
	}

	upd := &chat.Update{Sender: newUser(c.Sender())}
	if ch := c.Chat(); ch != nil {
		upd.ChatID = ch.ID
	}

	if cb := c.Callback(); cb != nil {
		upd.Kind = chat.KindCallback
		upd.CallbackID = cb.ID
		upd.Data = cb.Data
		if cb.Message != nil {
			upd.SourceMessageID = cb.Message.ID
			if upd.ChatID == 0 && cb.Message.Chat != nil {
				upd.ChatID = cb.Message.Chat.ID
			}
		}
		return upd
	}

	msg := c.Message()
	if msg == nil {
		upd.Kind = chat.KindOther
		return upd
	}

	upd.Kind = chat.KindMessage
	upd.MessageID = msg.ID
	upd.Text = msg.Text
	upd.Payload = make(map[string]any)

	add := func(subtype string, payload any) {
		upd.Subtypes = append(upd.Subtypes, subtype)
		upd.Payload[subtype] = payload
	}

	switch {
	case msg.Photo != nil:
		add(chat.SubtypePhoto, msg.Photo.FileID)
	case msg.Animation != nil:
		add(chat.SubtypeAnimation, msg.Animation.FileID)
	case msg.Document != nil:
		add(chat.SubtypeDocument, msg.Document.FileID)
	case msg.Audio != nil:
		add(chat.SubtypeAudio, msg.Audio.FileID)
	case msg.Voice != nil:
		add(chat.SubtypeVoice, msg.Voice.FileID)
	case msg.Video != nil:
		add(chat.SubtypeVideo, msg.Video.FileID)
	case msg.VideoNote != nil:
		add(chat.SubtypeVideoNote, msg.VideoNote.FileID)
	case msg.Sticker != nil:
		add(chat.SubtypeSticker, msg.Sticker.FileID)
	case msg.Location != nil:
		add(chat.SubtypeLocation, map[string]any{
			"lat": float64(msg.Location.Lat),
			"lng": float64(msg.Location.Lng),
		})
	case msg.Contact != nil:
		add(chat.SubtypeContact, map[string]any{
			"phone_number": msg.Contact.PhoneNumber,
			"first_name":   msg.Contact.FirstName,
			"last_name":    msg.Contact.LastName,
			"user_id":      msg.Contact.UserID,
		})
	}

	if msg.Text != "" {
		add(chat.SubtypeText, msg.Text)
	} else if msg.Caption != "" {
		upd.Text = msg.Caption
	}

	if len(upd.Subtypes) == 0 {
		upd.Kind = chat.KindOther
	}

	return upd
}

func newUser(u *telebot.User) *chat.User {
	if u == nil {
		return nil
	}

	return &chat.User{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		IsBot:        u.IsBot,
	}
}
