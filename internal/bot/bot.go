package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/internal/command"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	errors "github.com/Proton-105/himera-dialogs/internal/errors"
	"github.com/Proton-105/himera-dialogs/internal/middleware"
	"github.com/Proton-105/himera-dialogs/internal/poll"
	"github.com/Proton-105/himera-dialogs/pkg/config"
)

const CommandCancel = "/cancel"

// Engines are the conversation components the bot routes updates to.
type Engines struct {
	Dialogs *dialog.Dialogs
	Polls   *poll.Polls
	Parser  *command.Parser
}

// Guards are optional update middlewares.
type Guards struct {
	Throttle *middleware.Throttle
	Locker   middleware.Locker
}

// Bot wraps telebot.Bot with the router and the conversation engines.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	router     *Router
	engines    Engines
	errHandler *errors.Handler
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewTelebot builds the telegram client configured according to the application settings.
func NewTelebot(cfg config.Config) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Bot.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// New wires the router and middleware chain onto tb.
func New(tb *telebot.Bot, cfg config.Config, log *slog.Logger, engines Engines, guards Guards) *Bot {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		router:     NewRouter(engines.Dialogs, engines.Polls, engines.Parser, log),
		engines:    engines,
		errHandler: errors.NewHandler(log, cfg.Sentry.Enabled),
		ctx:        ctx,
		cancel:     cancel,
	}

	b.setupRouter(guards)
	b.registerTelebotHandlers()

	return b
}

// Router exposes the router for registering commands and callbacks.
func (b *Bot) Router() *Router {
	return b.router
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop stops polling, cancels in-flight updates and waits for pending
// message deletions.
func (b *Bot) Stop() {
	if b.log != nil {
		b.log.Info("stopping telegram bot...")
	}

	if b.telebot != nil {
		b.telebot.Stop()
	}
	b.cancel()

	if b.engines.Dialogs != nil {
		b.engines.Dialogs.Wait()
	}
	if b.engines.Polls != nil {
		b.engines.Polls.Wait()
	}
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter(guards Guards) {
	b.router.Use(ContextMiddleware(func() context.Context { return b.ctx }))
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Metrics)

	if guards.Throttle != nil {
		b.router.Use(guards.Throttle.Middleware())
	}
	if guards.Locker != nil {
		b.router.Use(middleware.ChatLock(guards.Locker, b.cfg.Dialogs.LockTimeout, b.log))
	}

	if b.engines.Dialogs != nil {
		b.router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(b.engines.Dialogs, b.log))
	}
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil {
		return
	}

	for _, endpoint := range []string{
		telebot.OnText,
		telebot.OnCallback,
		telebot.OnPhoto,
		telebot.OnDocument,
		telebot.OnAudio,
		telebot.OnVoice,
		telebot.OnVideo,
		telebot.OnVideoNote,
		telebot.OnAnimation,
		telebot.OnSticker,
		telebot.OnLocation,
		telebot.OnContact,
	} {
		b.telebot.Handle(endpoint, b.router.Route)
	}
}
