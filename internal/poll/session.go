package poll

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

// Session carries the poll being processed for a single update.
type Session struct {
	polls  *Polls
	update *chat.Update
	state  *State
	params chat.Params
}

func (s *Session) Update() *chat.Update {
	return s.update
}

// State returns a copy of the loaded poll state, or nil.
func (s *Session) State() *State {
	if s.state == nil {
		return nil
	}
	cp := *s.state
	cp.Data = maps.Clone(s.state.Data)
	if cp.Data == nil {
		cp.Data = map[string]any{}
	}
	return &cp
}

// Params returns the parameters decoded from the pressed button.
func (s *Session) Params() chat.Params {
	return s.params
}

// Start creates a poll owned by user (the update sender when nil) and shows it.
func (s *Session) Start(ctx context.Context, name string, user *chat.User, data map[string]any) error {
	poll, err := s.showable(ctx, name)
	if poll == nil {
		return err
	}

	if user == nil {
		user = s.update.Sender
	}
	if user == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("poll %q: update has no sender to own the poll", name))
	}
	if data == nil {
		data = map[string]any{}
	}

	created, err := s.polls.store.Create(ctx, &State{
		ChatID: s.update.ChatID,
		User:   *user,
		Name:   name,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("start poll %q: %w", name, err)
	}
	s.state = created

	return poll.onShow(ctx, s)
}

// Stop removes the poll with the given id, or the loaded one when id is
// empty, after running its stop handler.
func (s *Session) Stop(ctx context.Context, id string) error {
	if err := s.loadByID(ctx, id); err != nil {
		return err
	}
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("cannot stop poll without state"))
	}

	if poll, ok := s.polls.polls[s.state.Name]; ok && poll.onStop != nil {
		if err := poll.onStop(ctx, s); err != nil {
			return err
		}
	}

	if err := s.polls.store.Delete(ctx, s.state.ID); err != nil {
		return fmt.Errorf("stop poll %q: %w", s.state.Name, err)
	}
	s.state = nil

	return nil
}

// Show renders poll name for the poll with the given id, or the loaded one.
func (s *Session) Show(ctx context.Context, name, id string) error {
	poll, err := s.showable(ctx, name)
	if poll == nil {
		return err
	}

	if err := s.loadByID(ctx, id); err != nil {
		return err
	}
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("cannot show poll %q without state", name))
	}

	return poll.onShow(ctx, s)
}

// Execute runs action of the poll with the given id, or of the loaded one.
func (s *Session) Execute(ctx context.Context, action, id string) error {
	if err := s.loadByID(ctx, id); err != nil {
		return err
	}
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("cannot execute poll action %q without state", action))
	}

	poll, ok := s.polls.polls[s.state.Name]
	if !ok {
		return s.fail(ctx, apperrors.NewNotFoundError("poll %q is not registered", s.state.Name))
	}

	return poll.Execute(ctx, s, action)
}

// SendMessage renders the poll. A press on the poll message edits it in
// place; otherwise the previous message is deleted in the background and a
// new one is sent.
func (s *Session) SendMessage(ctx context.Context, text string, extra *chat.Extra) error {
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("cannot send poll message without state"))
	}

	st := s.state
	messenger := s.polls.messenger

	if s.update.IsCallback() && st.MessageID != 0 && s.update.SourceMessageID == st.MessageID {
		if err := messenger.Edit(ctx, st.ChatID, st.MessageID, text, extra); err != nil {
			return fmt.Errorf("edit poll message: %w", err)
		}
		return nil
	}

	if st.MessageID != 0 {
		s.polls.deleteAsync(ctx, st.ChatID, st.MessageID)
	}

	id, err := messenger.Send(ctx, st.ChatID, text, extra)
	if err != nil {
		return fmt.Errorf("send poll message: %w", err)
	}

	return s.Save(ctx, state.Fields{"message_id": id}, false)
}

// Save persists fields of the loaded poll and, when show is set, renders it again.
func (s *Session) Save(ctx context.Context, fields state.Fields, show bool) error {
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("cannot update poll without state"))
	}

	if err := s.polls.store.Update(ctx, s.state.ID, fields); err != nil {
		return fmt.Errorf("update poll %q: %w", s.state.Name, err)
	}

	fresh, err := s.polls.store.GetOne(ctx, s.state.ID)
	if err != nil {
		return fmt.Errorf("reload poll %q: %w", s.state.Name, err)
	}
	s.state = fresh

	if !show {
		return nil
	}
	return s.Show(ctx, s.state.Name, "")
}

func (s *Session) showable(ctx context.Context, name string) (*Poll, error) {
	poll, ok := s.polls.polls[name]
	if !ok {
		return nil, s.fail(ctx, apperrors.NewNotFoundError("poll %q is not registered", name))
	}
	if poll.onShow == nil {
		return nil, s.fail(ctx, apperrors.NewNotFoundError("poll %q has no show handler", name))
	}
	return poll, nil
}

// Load makes the poll with the given id the session poll.
func (s *Session) Load(ctx context.Context, id string) error {
	if err := s.loadByID(ctx, id); err != nil {
		return err
	}
	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("poll %q not found", id))
	}
	return nil
}

func (s *Session) loadByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	st, err := s.polls.store.GetOne(ctx, id)
	if errors.Is(err, state.ErrStateNotFound) {
		s.state = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("load poll %q: %w", id, err)
	}

	s.state = st
	return nil
}

func (s *Session) fail(ctx context.Context, err error) error {
	return s.polls.onError(ctx, err)
}
