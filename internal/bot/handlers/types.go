package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

const contextKey = "dialogs.ctx"

// Handler processes bot updates.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Context returns the request context attached to c by SetContext, or
// context.Background when none was attached.
func Context(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(contextKey).(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

// SetContext attaches ctx to c for handlers further down the chain.
func SetContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}
