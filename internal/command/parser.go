package command

import (
	"context"
	"log/slog"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
)

var matchRecorder = func(controller string) {}

// RegisterMatchRecorder allows external packages to observe matched commands.
// Unmatched input is reported with an empty controller name.
func RegisterMatchRecorder(recorder func(controller string)) {
	if recorder == nil {
		matchRecorder = func(string) {}
		return
	}

	matchRecorder = recorder
}

// Controller handles a matched command. params holds the named captures
// with the extra params of Execute merged on top.
type Controller func(ctx context.Context, params chat.Params) error

// ErrorHook receives NotFound errors for matches without a registered
// controller; the returned error is returned by Execute.
type ErrorHook func(ctx context.Context, err error) error

// Match is the result of a successful parse.
type Match struct {
	Controller string
	Params     chat.Params
}

type entry struct {
	steps      []Step
	controller string
}

type Option func(*Parser)

func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

func WithErrorHook(h ErrorHook) Option {
	return func(p *Parser) {
		if h != nil {
			p.onError = h
		}
	}
}

// Parser holds registered schemas in order together with their controllers.
// Registration must finish before Parse or Execute are called; after that the
// parser is safe for concurrent use.
type Parser struct {
	schemas     []entry
	controllers map[string]Controller
	onError     ErrorHook
	log         *slog.Logger
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		controllers: make(map[string]Controller),
		onError:     func(_ context.Context, err error) error { return err },
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema registers schema for controller. Schemas are tried in registration order.
func (p *Parser) Schema(schema *Schema, controller string) *Parser {
	p.schemas = append(p.schemas, entry{steps: schema.Steps(), controller: controller})
	return p
}

// Controller registers the handler for name.
func (p *Parser) Controller(name string, c Controller) *Parser {
	p.controllers[name] = c
	return p
}

// Parse returns the first schema match for text.
func (p *Parser) Parse(text string) (*Match, bool) {
	for _, e := range p.schemas {
		values, ok := match(text, e.steps)
		if !ok {
			continue
		}

		params := chat.Params{}
		for i, step := range e.steps {
			if step.Name != "" && values[i] != nil {
				params[step.Name] = values[i]
			}
		}

		return &Match{Controller: e.controller, Params: params}, true
	}

	return nil, false
}

// Execute parses text and runs the matched controller with extra merged
// over the captures. It reports whether a controller was run.
func (p *Parser) Execute(ctx context.Context, text string, extra chat.Params) (bool, error) {
	m, ok := p.Parse(text)
	if !ok {
		matchRecorder("")
		return false, nil
	}
	matchRecorder(m.Controller)

	controller, ok := p.controllers[m.Controller]
	if !ok {
		return false, p.onError(ctx, apperrors.NewNotFoundError("controller %q is not registered", m.Controller))
	}

	p.log.DebugContext(ctx, "command matched",
		slog.String("controller", m.Controller),
		slog.Int("params", len(m.Params)),
	)

	return true, controller(ctx, m.Params.Merge(extra))
}
