package chat

import "context"

// Parse modes understood by the telegram adapter.
const (
	ParseModeDefault  = ""
	ParseModeHTML     = "HTML"
	ParseModeMarkdown = "MarkdownV2"
)

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Extra carries rendering options for an outgoing message.
type Extra struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       [][]Button
}

// Messenger performs outbound message operations against the chat transport.
type Messenger interface {
	// Send delivers a new message and returns the id assigned by the transport.
	Send(ctx context.Context, chatID int64, text string, extra *Extra) (int, error)
	// Edit replaces the text and keyboard of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, text string, extra *Extra) error
	// Delete removes a message.
	Delete(ctx context.Context, chatID int64, messageID int) error
}
