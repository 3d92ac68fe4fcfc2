package dialog

import (
	"maps"
	"time"

	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
	"github.com/Proton-105/himera-dialogs/internal/chat"
)

var timeNow = time.Now

// RouteOption configures a message route.
type RouteOption func(*MessageRoute)

// Capture stores the payload of the matched message under param.
func Capture(param string) RouteOption {
	return func(r *MessageRoute) { r.Capture = param }
}

// Timeout makes the route expire d after the option is applied. The deadline
// is fixed when the message is built.
func Timeout(d time.Duration) RouteOption {
	deadline := timeNow().Add(d).UnixMilli()
	return func(r *MessageRoute) { r.ExpiresAt = deadline }
}

// Message builds outgoing content together with the transitions that the
// conversation state will carry once the message is sent.
type Message struct {
	text     string
	extra    chat.Extra
	params   chat.Params
	choices  []Choice
	rows     [][]chat.Button
	keyboard bool
	fallback *Target
	routes   map[string]MessageRoute
}

// Table is the declarative part of a Message, before tokens are assigned.
type Table struct {
	Choices  []Choice
	Fallback *Target
	Messages map[string]MessageRoute
	// Callbacks is true when a keyboard or fallback was declared.
	Callbacks bool
}

// Outbound is a compiled Message ready to be sent.
type Outbound struct {
	Text   string
	Extra  *chat.Extra
	Params chat.Params
	Next   Transitions
}

func NewMessage(text string) *Message {
	return &Message{text: text}
}

func (m *Message) Text(text string) *Message {
	m.text = text
	return m
}

func (m *Message) ParseMode(mode string) *Message {
	m.extra.ParseMode = mode
	return m
}

func (m *Message) DisablePreview() *Message {
	m.extra.DisablePreview = true
	return m
}

// Params merges params into the values persisted with the conversation.
func (m *Message) Params(params chat.Params) *Message {
	m.params = m.params.Merge(params)
	return m
}

// InlineKeyboard appends buttons whose presses lead to their phases.
func (m *Message) InlineKeyboard(choices ...Choice) *Message {
	m.choices = append(m.choices, choices...)
	m.keyboard = true
	return m
}

// Buttons attaches ready-made buttons. Their data is sent as is, so a press
// is resolved through OnCallback or used directly as the phase name.
func (m *Message) Buttons(rows [][]chat.Button) *Message {
	m.rows = append(m.rows, rows...)
	m.keyboard = true
	return m
}

// OnMessage continues the conversation at phase when the user sends a
// message of the given subtype, or of any subtype for AnySubtype.
func (m *Message) OnMessage(subtype, phase string, opts ...RouteOption) *Message {
	route := MessageRoute{Phase: phase}
	for _, opt := range opts {
		opt(&route)
	}

	if m.routes == nil {
		m.routes = make(map[string]MessageRoute)
	}
	m.routes[subtype] = route

	return m
}

// OnCallback sets the route for callbacks that match no button token.
// An empty phase ends the conversation on such callbacks.
func (m *Message) OnCallback(phase string, params chat.Params) *Message {
	m.fallback = &Target{Phase: phase, Params: params}
	return m
}

// Table returns the declared transitions without encoding the keyboard.
func (m *Message) Table() Table {
	return Table{
		Choices:   append([]Choice(nil), m.choices...),
		Fallback:  m.fallback,
		Messages:  maps.Clone(m.routes),
		Callbacks: m.keyboard || m.fallback != nil,
	}
}

// Compile assigns tokens to the keyboard and produces the wire message and
// the transitions to persist.
func (m *Message) Compile(tokens TokenSource) (Outbound, error) {
	table := m.Table()

	out := Outbound{
		Text:   m.text,
		Params: m.params,
		Next:   Transitions{Message: table.Messages},
	}

	extra := m.extra
	rows := append([][]chat.Button(nil), m.rows...)

	if table.Callbacks {
		out.Next.Callback = make(map[string]Target)
	}

	if len(table.Choices) > 0 {
		encoded, callback, err := EncodeChoices(table.Choices, tokens)
		if err != nil {
			return Outbound{}, err
		}
		maps.Copy(out.Next.Callback, callback)

		layout := keyboard.NewInline()
		for _, ec := range encoded {
			layout.Add(ec.Button, ec.Choice.Group, ec.Choice.NumInRow)
		}
		rows = append(rows, layout.Rows()...)
	}

	if table.Fallback != nil {
		out.Next.Callback[DefaultRoute] = *table.Fallback
	}

	if len(rows) > 0 {
		extra.Keyboard = rows
	}
	out.Extra = &extra

	return out, nil
}
