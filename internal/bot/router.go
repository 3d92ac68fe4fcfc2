package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/command"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	"github.com/Proton-105/himera-dialogs/internal/poll"
)

// Router hands every update to the first component that accepts it.
//
// Callbacks go to polls, then dialogs, then prefix callback handlers.
// Messages go to slash commands, then dialogs, then the command parser,
// then the default handler.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]handlers.Handler
	callbacks      map[string]handlers.Handler
	dialogs        *dialog.Dialogs
	polls          *poll.Polls
	parser         *command.Parser
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries. Any engine may be nil.
func NewRouter(dialogs *dialog.Dialogs, polls *poll.Polls, parser *command.Parser, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		callbacks:   make(map[string]handlers.Handler),
		dialogs:     dialogs,
		polls:       polls,
		parser:      parser,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a slash command such as "/cancel".
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for callback data prefixes.
func (r *Router) RegisterCallback(prefix string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = h
}

// Use appends a middleware to the chain. The first middleware added runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the fallback handler for messages nothing else accepted.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route runs the middleware chain and dispatches the update.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	wrapped := r.applyMiddlewares(r.route)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) route(c telebot.Context) error {
	ctx := handlers.Context(c)

	upd := chat.UpdateFromContext(ctx)
	if upd == nil {
		upd = NewUpdate(c)
		ctx = chat.WithUpdate(ctx, upd)
	}

	session := r.newDialogSession(upd)
	if session != nil {
		ctx = dialog.WithSession(ctx, session)
	}
	handlers.SetContext(c, ctx)

	switch upd.Kind {
	case chat.KindCallback:
		return r.handleCallback(ctx, c, upd, session)
	case chat.KindMessage:
		return r.handleMessage(ctx, c, upd, session)
	default:
		return nil
	}
}

// handleCallback answers the callback query after a successful press; a
// failed one is answered by the error handling middleware.
func (r *Router) handleCallback(ctx context.Context, c telebot.Context, upd *chat.Update, session *dialog.Session) (err error) {
	defer func() {
		if err != nil {
			return
		}
		if respondErr := c.Respond(); respondErr != nil {
			r.log.DebugContext(ctx, "failed to answer callback", slog.Any("error", respondErr))
		}
	}()

	if r.polls != nil {
		handled, err := r.polls.HandleCallback(ctx, r.polls.NewSession(upd))
		if err != nil || handled {
			return err
		}
	}

	if session != nil {
		handled, err := r.dialogs.HandleCallback(ctx, session)
		if err != nil || handled {
			return err
		}
	}

	if handler := r.findCallbackHandler(upd.Data); handler != nil {
		return handler(c)
	}

	r.log.DebugContext(ctx, "no callback handler found", slog.String("data", upd.Data))
	return nil
}

func (r *Router) handleMessage(ctx context.Context, c telebot.Context, upd *chat.Update, session *dialog.Session) error {
	text := upd.Text

	if strings.HasPrefix(text, "/") {
		if handler := r.getCommandHandler(commandName(text)); handler != nil {
			return handler(c)
		}
	}

	if session != nil {
		handled, err := r.dialogs.HandleMessage(ctx, session)
		if err != nil || handled {
			return err
		}
	}

	if r.parser != nil && upd.HasSubtype(chat.SubtypeText) {
		handled, err := r.parser.Execute(ctx, text, nil)
		if err != nil || handled {
			return err
		}
	}

	if handler := r.getDefaultHandler(); handler != nil {
		return handler(c)
	}

	return nil
}

func (r *Router) newDialogSession(upd *chat.Update) *dialog.Session {
	if r.dialogs == nil {
		return nil
	}
	return r.dialogs.NewSession(upd)
}

// commandName strips arguments and the "@botname" suffix from a slash command.
func commandName(text string) string {
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return name
}

func (r *Router) findCallbackHandler(data string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best    handlers.Handler
		bestLen = -1
	)
	for prefix, handler := range r.callbacks {
		if strings.HasPrefix(data, prefix) && len(prefix) > bestLen {
			best, bestLen = handler, len(prefix)
		}
	}

	return best
}

func (r *Router) getCommandHandler(cmd string) handlers.Handler {
	r.mu.RLock()
	handler := r.commands[cmd]
	r.mu.RUnlock()
	return handler
}

func (r *Router) getDefaultHandler() handlers.Handler {
	r.mu.RLock()
	handler := r.defaultHandler
	r.mu.RUnlock()
	return handler
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
