package dialog

import (
	"context"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
)

// Handler runs a phase. st is a snapshot of the conversation with the call
// params merged in; next performs the transition.
type Handler func(ctx context.Context, next *Next, st *State) error

// Dialog is a named conversation definition. Phases are registered during
// setup and never change while updates are served.
type Dialog struct {
	name    string
	phases  map[string]Handler
	onEnter Handler
	onExit  Handler
}

func NewDialog(name string) *Dialog {
	return &Dialog{
		name:   name,
		phases: make(map[string]Handler),
	}
}

func (d *Dialog) Name() string {
	return d.name
}

// Phase registers the handler for a phase.
func (d *Dialog) Phase(name string, h Handler) *Dialog {
	d.phases[name] = h
	return d
}

// OnEnter registers the handler run when the dialog is entered.
func (d *Dialog) OnEnter(h Handler) *Dialog {
	d.onEnter = h
	return d
}

// OnExit registers the handler run before the conversation state is removed.
func (d *Dialog) OnExit(h Handler) *Dialog {
	d.onExit = h
	return d
}

// HasPhase reports whether the phase is registered.
func (d *Dialog) HasPhase(name string) bool {
	_, ok := d.phases[name]
	return ok
}

// Execute runs phase within the session. When the active conversation
// belongs to another dialog it is first moved to this one with its
// transitions cleared.
func (d *Dialog) Execute(ctx context.Context, s *Session, phase string, params chat.Params) error {
	handler, ok := d.phases[phase]
	if !ok {
		return s.fail(ctx, apperrors.NewNotFoundError("dialog %q: phase %q is not registered", d.name, phase))
	}

	if s.state == nil {
		return s.fail(ctx, apperrors.NewStateMissingError("dialog %q: cannot execute phase %q without state", d.name, phase))
	}

	if s.state.Name != d.name {
		if err := s.rehome(ctx, d.name); err != nil {
			return err
		}
	}

	recordTransition(d.name, phase)

	snapshot := s.snapshot()
	snapshot.Params = snapshot.Params.Merge(params)

	return handler(ctx, s.next(), snapshot)
}
