// Package chat defines the transport-neutral shapes exchanged between the
// messenger adapter and the conversation engines.
package chat

// Kind discriminates inbound updates.
type Kind int

const (
	// KindOther marks updates the engines do not route.
	KindOther Kind = iota
	// KindMessage is a user message carrying one or more payload subtypes.
	KindMessage
	// KindCallback is an inline button press.
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCallback:
		return "callback"
	default:
		return "other"
	}
}

// Message subtypes recognised by the telegram adapter.
const (
	SubtypeText      = "text"
	SubtypePhoto     = "photo"
	SubtypeDocument  = "document"
	SubtypeAudio     = "audio"
	SubtypeVoice     = "voice"
	SubtypeVideo     = "video"
	SubtypeVideoNote = "video_note"
	SubtypeAnimation = "animation"
	SubtypeSticker   = "sticker"
	SubtypeLocation  = "location"
	SubtypeContact   = "contact"
)

// User identifies the sender of an update and the owner of persisted state.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsBot        bool   `json:"is_bot,omitempty"`
}

// Update is a single inbound event.
//
// Message updates carry Subtypes (most specific first) and a Payload keyed by
// subtype. Callback updates carry Data and the id of the message the pressed
// button was attached to.
type Update struct {
	Kind      Kind
	ChatID    int64
	Sender    *User
	MessageID int

	Text     string
	Subtypes []string
	Payload  map[string]any

	CallbackID      string
	Data            string
	SourceMessageID int
}

// IsMessage reports whether u is a message update.
func (u *Update) IsMessage() bool {
	return u != nil && u.Kind == KindMessage
}

// IsCallback reports whether u is a callback update.
func (u *Update) IsCallback() bool {
	return u != nil && u.Kind == KindCallback
}

// SenderID returns the sender id or zero when the update has no sender.
func (u *Update) SenderID() int64 {
	if u == nil || u.Sender == nil {
		return 0
	}
	return u.Sender.ID
}

// HasSubtype reports whether the message carries the given payload subtype.
func (u *Update) HasSubtype(subtype string) bool {
	if u == nil {
		return false
	}
	for _, s := range u.Subtypes {
		if s == subtype {
			return true
		}
	}
	return false
}
