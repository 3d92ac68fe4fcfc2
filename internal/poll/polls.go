package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

const defaultDeleteTimeout = 10 * time.Second

// ErrorHook receives NotFound and StateMissing errors; see dialog.ErrorHook.
type ErrorHook func(ctx context.Context, err error) error

// WarningHook receives failures of best-effort operations.
type WarningHook func(ctx context.Context, err error)

type Option func(*Polls)

func WithLogger(log *slog.Logger) Option {
	return func(p *Polls) {
		if log != nil {
			p.log = log
		}
	}
}

func WithErrorHook(h ErrorHook) Option {
	return func(p *Polls) {
		if h != nil {
			p.onError = h
		}
	}
}

func WithWarningHook(h WarningHook) Option {
	return func(p *Polls) {
		if h != nil {
			p.onWarning = h
		}
	}
}

// Polls owns poll definitions and their persisted states.
type Polls struct {
	store     state.Store[State]
	messenger chat.Messenger
	polls     map[string]*Poll
	log       *slog.Logger
	onError   ErrorHook
	onWarning WarningHook
	pending   sync.WaitGroup
}

func New(store state.Store[State], messenger chat.Messenger, opts ...Option) *Polls {
	p := &Polls{
		store:     store,
		messenger: messenger,
		polls:     make(map[string]*Poll),
		log:       slog.Default(),
		onError:   func(_ context.Context, err error) error { return err },
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.onWarning == nil {
		log := p.log
		p.onWarning = func(ctx context.Context, err error) {
			log.WarnContext(ctx, "poll warning", slog.Any("error", err))
		}
	}

	return p
}

// Register adds poll definitions. It must not be called while updates are served.
func (p *Polls) Register(polls ...*Poll) *Polls {
	for _, poll := range polls {
		p.polls[poll.name] = poll
	}
	return p
}

// NewSession starts processing of one update.
func (p *Polls) NewSession(upd *chat.Update) *Session {
	if upd == nil {
		upd = &chat.Update{}
	}
	return &Session{polls: p, update: upd, params: chat.Params{}}
}

// HandleCallback runs the action of the poll that owns the pressed message.
// Data produced by keyboard.EncodeAction is decoded and its parameters are
// exposed through Session.Params; other data is used as the action name.
func (p *Polls) HandleCallback(ctx context.Context, s *Session) (bool, error) {
	upd := s.update
	if !upd.IsCallback() || upd.SourceMessageID == 0 {
		return false, nil
	}

	st, err := p.store.FindOne(ctx, upd.ChatID, state.Filter{"message_id": upd.SourceMessageID})
	if errors.Is(err, state.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find poll by message: %w", err)
	}

	s.state = st

	action := upd.Data
	if decoded, ok := keyboard.DecodeAction(upd.Data); ok {
		action = decoded.Name
		for k, v := range decoded.Params {
			s.params[k] = v
		}
	}

	return true, s.Execute(ctx, action, "")
}

// Wait blocks until background message deletions have finished.
func (p *Polls) Wait() {
	p.pending.Wait()
}

func (p *Polls) deleteAsync(ctx context.Context, chatID int64, messageID int) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDeleteTimeout)
		defer cancel()

		if err := p.messenger.Delete(dctx, chatID, messageID); err != nil {
			p.onWarning(dctx, fmt.Errorf("delete poll message %d in chat %d: %w", messageID, chatID, err))
		}
	}()
}
