package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

const defaultDeleteTimeout = 10 * time.Second

var transitionRecorder = func(dialog, phase string) {}

// RegisterTransitionRecorder allows external packages to observe executed phases.
func RegisterTransitionRecorder(recorder func(dialog, phase string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

func recordTransition(dialog, phase string) {
	transitionRecorder(dialog, phase)
}

// ErrorHook receives NotFound and StateMissing errors. The returned error is
// what the failing operation returns; returning nil lets it continue.
type ErrorHook func(ctx context.Context, err error) error

// WarningHook receives failures of best-effort operations.
type WarningHook func(ctx context.Context, err error)

type Option func(*Dialogs)

func WithLogger(log *slog.Logger) Option {
	return func(d *Dialogs) {
		if log != nil {
			d.log = log
		}
	}
}

func WithErrorHook(h ErrorHook) Option {
	return func(d *Dialogs) {
		if h != nil {
			d.onError = h
		}
	}
}

func WithWarningHook(h WarningHook) Option {
	return func(d *Dialogs) {
		if h != nil {
			d.onWarning = h
		}
	}
}

func WithTokens(tokens TokenSource) Option {
	return func(d *Dialogs) {
		if tokens != nil {
			d.tokens = tokens
		}
	}
}

// WithDeleteTimeout bounds the background deletion of replaced messages.
func WithDeleteTimeout(timeout time.Duration) Option {
	return func(d *Dialogs) {
		if timeout > 0 {
			d.deleteTimeout = timeout
		}
	}
}

// Dialogs owns the dialog definitions and routes updates to them.
type Dialogs struct {
	store         state.Store[State]
	messenger     chat.Messenger
	dialogs       map[string]*Dialog
	tokens        TokenSource
	log           *slog.Logger
	onError       ErrorHook
	onWarning     WarningHook
	deleteTimeout time.Duration
	pending       sync.WaitGroup
}

func New(store state.Store[State], messenger chat.Messenger, opts ...Option) *Dialogs {
	d := &Dialogs{
		store:         store,
		messenger:     messenger,
		dialogs:       make(map[string]*Dialog),
		tokens:        RandomTokens{Length: DefaultTokenLength},
		log:           slog.Default(),
		deleteTimeout: defaultDeleteTimeout,
	}
	d.onError = func(_ context.Context, err error) error { return err }

	for _, opt := range opts {
		opt(d)
	}

	if d.onWarning == nil {
		log := d.log
		d.onWarning = func(ctx context.Context, err error) {
			log.WarnContext(ctx, "dialog warning", slog.Any("error", err))
		}
	}

	return d
}

// Register adds dialog definitions. It must not be called while updates are served.
func (r *Dialogs) Register(dialogs ...*Dialog) *Dialogs {
	for _, d := range dialogs {
		r.dialogs[d.name] = d
	}
	return r
}

// Dialog returns a registered definition.
func (r *Dialogs) Dialog(name string) (*Dialog, bool) {
	d, ok := r.dialogs[name]
	return d, ok
}

// NewSession starts processing of one update.
func (r *Dialogs) NewSession(upd *chat.Update) *Session {
	if upd == nil {
		upd = &chat.Update{}
	}
	return &Session{dialogs: r, update: upd}
}

// Resume returns a session with the conversation of the update sender loaded, if any.
func (r *Dialogs) Resume(ctx context.Context, upd *chat.Update) (*Session, error) {
	s := r.NewSession(upd)
	if id := upd.SenderID(); id != 0 {
		if err := s.load(ctx, id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handle routes the session update by kind. It reports whether the update
// was consumed by a conversation.
func (r *Dialogs) Handle(ctx context.Context, s *Session) (bool, error) {
	switch s.update.Kind {
	case chat.KindMessage:
		return r.HandleMessage(ctx, s)
	case chat.KindCallback:
		return r.HandleCallback(ctx, s)
	default:
		return false, nil
	}
}

// HandleMessage continues the sender's conversation when the message matches
// a declared route. A conversation without any transitions is ended and the
// update passed on.
func (r *Dialogs) HandleMessage(ctx context.Context, s *Session) (bool, error) {
	upd := s.update
	if !upd.IsMessage() || upd.Sender == nil {
		return false, nil
	}

	if s.state == nil || s.state.User.ID != upd.Sender.ID {
		if err := s.load(ctx, upd.Sender.ID); err != nil {
			return false, err
		}
	}
	if s.state == nil {
		return false, nil
	}

	st := s.state
	if st.Next.IsEmpty() {
		return false, s.Exit(ctx)
	}

	route, subtype, ok := st.Next.ResolveMessage(upd.Subtypes)
	if !ok || route.Expired(timeNow()) {
		return false, nil
	}

	params := chat.Params{}
	if route.Capture != "" && subtype != "" {
		params[route.Capture] = upd.Payload[subtype]
	}

	return true, s.Goto(ctx, st.Name, route.Phase, params)
}

// HandleCallback continues the conversation that tracks the message the
// pressed button belongs to. Presses by anyone but the owner are passed on.
func (r *Dialogs) HandleCallback(ctx context.Context, s *Session) (bool, error) {
	upd := s.update
	if !upd.IsCallback() || upd.Sender == nil || upd.SourceMessageID == 0 {
		return false, nil
	}

	st, err := r.store.FindOne(ctx, upd.ChatID, state.Filter{"message_id": upd.SourceMessageID})
	if err != nil {
		if errors.Is(err, state.ErrStateNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find dialog by message: %w", err)
	}

	if st.User.ID != upd.Sender.ID {
		return false, nil
	}

	s.state = st
	if st.Next.Callback == nil {
		return true, s.Exit(ctx)
	}

	phase, bound := st.Next.ResolveCallback(upd.Data)
	if phase == "" {
		return true, s.Exit(ctx)
	}

	return true, s.Goto(ctx, st.Name, phase, bound)
}

// Wait blocks until background message deletions have finished.
func (r *Dialogs) Wait() {
	r.pending.Wait()
}

func (r *Dialogs) deleteAsync(ctx context.Context, chatID int64, messageID int) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.deleteTimeout)
		defer cancel()

		if err := r.messenger.Delete(dctx, chatID, messageID); err != nil {
			r.onWarning(dctx, fmt.Errorf("delete message %d in chat %d: %w", messageID, chatID, err))
		}
	}()
}
