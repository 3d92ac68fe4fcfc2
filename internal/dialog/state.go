// Package dialog implements persistent multi-turn conversations.
//
// A Dialogs registry routes inbound updates to the active State of the
// sender, resolves the transition declared by the last sent Message and runs
// the target phase handler of a Dialog.
package dialog

import (
	"time"

	"github.com/Proton-105/himera-dialogs/internal/chat"
)

const (
	// DefaultRoute is the callback key used when a received token is unknown.
	DefaultRoute = "_default"
	// AnySubtype matches any message subtype without its own route.
	AnySubtype = "any"

	// ParamDialog and ParamPhase are the navigation keys understood by Next.Navigate.
	ParamDialog = "dialog"
	ParamPhase  = "phase"
)

// State is the persisted record of one conversation. There is at most one
// State per chat and user.
type State struct {
	ID        string      `json:"id"`
	ChatID    int64       `json:"chat_id"`
	User      chat.User   `json:"user"`
	Name      string      `json:"name"`
	MessageID int         `json:"message_id,omitempty"`
	Params    chat.Params `json:"params"`
	Next      Transitions `json:"next"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Target is a callback transition.
type Target struct {
	Phase  string      `json:"phase"`
	Params chat.Params `json:"params,omitempty"`
}

// MessageRoute is a message transition. ExpiresAt is a unix time in
// milliseconds; zero means the route never expires.
type MessageRoute struct {
	Phase     string `json:"phase"`
	Capture   string `json:"capture,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Expired reports whether the route deadline has passed at now.
func (r MessageRoute) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixMilli() > r.ExpiresAt
}

// Transitions describes which inbound events continue the conversation.
//
// A nil Callback map means callbacks end the conversation. A non-nil empty
// map accepts any callback and uses its raw data as the phase name. Both
// maps nil means the last message ended the conversation.
type Transitions struct {
	Callback map[string]Target       `json:"callback"`
	Message  map[string]MessageRoute `json:"message"`
}

// IsEmpty reports whether no transition is declared.
func (t Transitions) IsEmpty() bool {
	return t.Callback == nil && t.Message == nil
}

// ResolveCallback returns the phase and bound params for callback data.
// Unknown data falls back to DefaultRoute and then to the data itself.
// An empty phase means the conversation should end.
func (t Transitions) ResolveCallback(data string) (string, chat.Params) {
	if target, ok := t.Callback[data]; ok {
		return target.Phase, target.Params
	}
	if target, ok := t.Callback[DefaultRoute]; ok {
		return target.Phase, target.Params
	}
	return data, nil
}

// ResolveMessage returns the route for the first subtype with a declared
// route, falling back to AnySubtype, together with the subtype whose payload
// should be captured.
func (t Transitions) ResolveMessage(subtypes []string) (MessageRoute, string, bool) {
	for _, subtype := range subtypes {
		if route, ok := t.Message[subtype]; ok {
			return route, subtype, true
		}
	}

	route, ok := t.Message[AnySubtype]
	if !ok {
		return MessageRoute{}, "", false
	}

	subtype := ""
	if len(subtypes) > 0 {
		subtype = subtypes[0]
	}

	return route, subtype, true
}
