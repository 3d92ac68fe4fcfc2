// Package poll runs chat-wide button polls. A poll is a callback-only
// conversation bound to one message; anyone in the chat may press its buttons.
package poll

import (
	"context"
	"time"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
)

// State is the persisted record of a running poll.
type State struct {
	ID        string         `json:"id"`
	ChatID    int64          `json:"chat_id"`
	User      chat.User      `json:"user"`
	Name      string         `json:"name"`
	MessageID int            `json:"message_id,omitempty"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Handler runs a poll action or hook within the session.
type Handler func(ctx context.Context, s *Session) error

var actionRecorder = func(poll, action string) {}

// RegisterActionRecorder allows external packages to observe executed poll actions.
func RegisterActionRecorder(recorder func(poll, action string)) {
	if recorder == nil {
		actionRecorder = func(string, string) {}
		return
	}

	actionRecorder = recorder
}

// Poll is a named poll definition.
type Poll struct {
	name    string
	actions map[string]Handler
	onShow  Handler
	onStop  Handler
}

func NewPoll(name string) *Poll {
	return &Poll{name: name, actions: make(map[string]Handler)}
}

func (p *Poll) Name() string {
	return p.name
}

// Action registers the handler for a button action.
func (p *Poll) Action(name string, h Handler) *Poll {
	p.actions[name] = h
	return p
}

// OnShow registers the handler that renders the poll.
func (p *Poll) OnShow(h Handler) *Poll {
	p.onShow = h
	return p
}

// OnStop registers the handler run before the poll state is removed.
func (p *Poll) OnStop(h Handler) *Poll {
	p.onStop = h
	return p
}

// Execute runs action for the poll loaded in the session.
func (p *Poll) Execute(ctx context.Context, s *Session, action string) error {
	h, ok := p.actions[action]
	if !ok {
		return s.fail(ctx, apperrors.NewNotFoundError("poll %q: action %q is not registered", p.name, action))
	}
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("poll %q: cannot execute action %q without state", p.name, action))
	}
	if s.state.Name != p.name {
		return s.fail(ctx, apperrors.NewNotFoundError("poll %q: action %q called for poll %q", p.name, action, s.state.Name))
	}

	actionRecorder(p.name, action)
	return h(ctx, s)
}
