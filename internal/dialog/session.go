package dialog

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

type sessionKey struct{}

// WithSession stores the session in ctx for middleware further down the chain.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Session carries the conversation being processed for a single update.
// It is not safe for concurrent use.
type Session struct {
	dialogs *Dialogs
	update  *chat.Update
	state   *State
}

// Update returns the inbound event being processed.
func (s *Session) Update() *chat.Update {
	return s.update
}

// State returns a copy of the active conversation, or nil.
func (s *Session) State() *State {
	if s.state == nil {
		return nil
	}
	return s.snapshot()
}

// Enter starts dialog name for user, running its enter handler. An existing
// conversation of the same user in this chat is taken over: it keeps its
// record and tracked message, its params are replaced and transitions cleared.
func (s *Session) Enter(ctx context.Context, name string, user *chat.User, params chat.Params) error {
	d, ok := s.dialogs.dialogs[name]
	if !ok {
		return s.fail(ctx, apperrors.NewNotFoundError("dialog %q is not registered", name))
	}

	if user == nil {
		user = s.update.Sender
	}
	if user == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("dialog %q: update has no sender to own the conversation", name))
	}

	if s.state == nil || s.state.User.ID != user.ID {
		if err := s.load(ctx, user.ID); err != nil {
			return err
		}
	}

	params = chat.Params{}.Merge(params)

	if s.state != nil {
		fields := state.Fields{"name": name, "next": Transitions{}, "params": params}
		if err := s.dialogs.store.Update(ctx, s.state.ID, fields); err != nil {
			return fmt.Errorf("enter dialog %q: %w", name, err)
		}
		s.state.Name = name
		s.state.Next = Transitions{}
		s.state.Params = params
	} else if err := s.create(ctx, name, *user, params); err != nil {
		return fmt.Errorf("enter dialog %q: %w", name, err)
	}

	recordTransition(name, "enter")

	if d.onEnter == nil {
		return nil
	}
	return d.onEnter(ctx, s.next(), s.snapshot())
}

// Goto moves the conversation to dialog name and runs phase. Without an
// active conversation one is created for the update sender.
func (s *Session) Goto(ctx context.Context, name, phase string, params chat.Params) error {
	d, ok := s.dialogs.dialogs[name]
	if !ok {
		return s.fail(ctx, apperrors.NewNotFoundError("dialog %q is not registered", name))
	}

	if s.state == nil {
		if id := s.update.SenderID(); id != 0 {
			if err := s.load(ctx, id); err != nil {
				return err
			}
		}
	}

	if s.state == nil {
		if s.update.Sender == nil {
			return s.fail(ctx, apperrors.NewStateMissingError("dialog %q: update has no sender to own the conversation", name))
		}
		if err := s.create(ctx, name, *s.update.Sender, chat.Params{}.Merge(params)); err != nil {
			return fmt.Errorf("goto %s.%s: %w", name, phase, err)
		}
	} else {
		merged := s.state.Params.Merge(params)
		fields := state.Fields{"name": name, "next": Transitions{}, "params": merged}
		if err := s.dialogs.store.Update(ctx, s.state.ID, fields); err != nil {
			return fmt.Errorf("goto %s.%s: %w", name, phase, err)
		}
		s.state.Name = name
		s.state.Next = Transitions{}
		s.state.Params = merged
	}

	return d.Execute(ctx, s, phase, params)
}

// Exit ends the active conversation after running the exit handler of its dialog.
func (s *Session) Exit(ctx context.Context) error {
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("no active dialog to exit"))
	}

	snapshot := s.snapshot()
	if d, ok := s.dialogs.dialogs[snapshot.Name]; ok && d.onExit != nil {
		if err := d.onExit(ctx, s.next(), snapshot); err != nil {
			return err
		}
	}

	// the exit handler may already have ended the conversation by sending
	// a message without transitions
	if s.state == nil {
		return nil
	}

	if err := s.dialogs.store.Delete(ctx, s.state.ID); err != nil {
		return fmt.Errorf("exit dialog %q: %w", snapshot.Name, err)
	}
	s.state = nil

	return nil
}

// Send delivers msg for the active conversation and persists the transitions
// it declares. The tracked message is edited when the update is a press on
// one of its buttons; otherwise it is deleted in the background and a new
// message is sent. A message without transitions ends the conversation.
func (s *Session) Send(ctx context.Context, msg *Message) error {
	if msg == nil {
		return apperrors.NewValidationError("dialog message is nil")
	}
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("cannot send a dialog message without state"))
	}

	out, err := msg.Compile(s.dialogs.tokens)
	if err != nil {
		return fmt.Errorf("compile dialog message: %w", err)
	}

	st := s.state
	messenger := s.dialogs.messenger
	messageID := st.MessageID

	if s.update.IsCallback() && messageID != 0 && s.update.SourceMessageID == messageID {
		if err := messenger.Edit(ctx, st.ChatID, messageID, out.Text, out.Extra); err != nil {
			return fmt.Errorf("edit dialog message: %w", err)
		}
	} else {
		if messageID != 0 {
			s.dialogs.deleteAsync(ctx, st.ChatID, messageID)
		}

		id, err := messenger.Send(ctx, st.ChatID, out.Text, out.Extra)
		if err != nil {
			return fmt.Errorf("send dialog message: %w", err)
		}
		messageID = id
	}

	if out.Next.IsEmpty() {
		s.state = nil
		if err := s.dialogs.store.Delete(ctx, st.ID); err != nil {
			s.warn(ctx, fmt.Errorf("delete finished dialog %q: %w", st.Name, err))
		}
		return nil
	}

	params := st.Params.Merge(out.Params)
	fields := state.Fields{"message_id": messageID, "next": out.Next, "params": params}
	if err := s.dialogs.store.Update(ctx, st.ID, fields); err != nil {
		return fmt.Errorf("save dialog %q: %w", st.Name, err)
	}

	st.MessageID = messageID
	st.Next = out.Next
	st.Params = params

	return nil
}

// Navigate interprets params as a transition: "dialog" alone enters that
// dialog, "phase" (with an optional "dialog") jumps to the phase, and
// neither exits. Remaining params are passed along.
func (s *Session) Navigate(ctx context.Context, params chat.Params) error {
	name := params.String(ParamDialog)
	phase := params.String(ParamPhase)
	rest := params.Without(ParamDialog, ParamPhase)

	switch {
	case phase != "":
		if name == "" {
			if s.state == nil {
				return s.fail(ctx, apperrors.NewStateMissingError("cannot navigate to phase %q without state", phase))
			}
			name = s.state.Name
		}
		return s.Goto(ctx, name, phase, rest)
	case name != "":
		var user *chat.User
		if s.state != nil {
			u := s.state.User
			user = &u
		}
		return s.Enter(ctx, name, user, rest)
	default:
		return s.Exit(ctx)
	}
}

func (s *Session) create(ctx context.Context, name string, user chat.User, params chat.Params) error {
	created, err := s.dialogs.store.Create(ctx, &State{
		ChatID: s.update.ChatID,
		User:   user,
		Name:   name,
		Params: params,
	})
	if err != nil {
		return err
	}

	s.state = created
	return nil
}

// load replaces the session state with the conversation of userID.
func (s *Session) load(ctx context.Context, userID int64) error {
	st, err := s.dialogs.store.FindOne(ctx, s.update.ChatID, state.Filter{"user.id": userID})
	if errors.Is(err, state.ErrStateNotFound) {
		s.state = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("load dialog state: %w", err)
	}

	s.state = st
	return nil
}

// rehome moves the conversation to dialog name keeping its params.
func (s *Session) rehome(ctx context.Context, name string) error {
	fields := state.Fields{"name": name, "next": Transitions{}, "params": s.state.Params}
	if err := s.dialogs.store.Update(ctx, s.state.ID, fields); err != nil {
		return fmt.Errorf("move conversation to %q: %w", name, err)
	}

	s.state.Name = name
	s.state.Next = Transitions{}
	return nil
}

func (s *Session) snapshot() *State {
	cp := *s.state
	cp.Params = maps.Clone(s.state.Params)
	if cp.Params == nil {
		cp.Params = chat.Params{}
	}
	cp.Next = Transitions{
		Callback: maps.Clone(s.state.Next.Callback),
		Message:  maps.Clone(s.state.Next.Message),
	}
	return &cp
}

func (s *Session) next() *Next {
	return &Next{session: s}
}

func (s *Session) fail(ctx context.Context, err error) error {
	return s.dialogs.onError(ctx, err)
}

func (s *Session) warn(ctx context.Context, err error) {
	s.dialogs.onWarning(ctx, err)
}

// Next is handed to phase handlers to continue the conversation.
type Next struct {
	session *Session
}

// Send delivers msg and persists its transitions.
func (n *Next) Send(ctx context.Context, msg *Message) error {
	return n.session.Send(ctx, msg)
}

// Navigate performs a transition described by params, see Session.Navigate.
func (n *Next) Navigate(ctx context.Context, params chat.Params) error {
	return n.session.Navigate(ctx, params)
}

// Session exposes the underlying session.
func (n *Next) Session() *Session {
	return n.session
}
