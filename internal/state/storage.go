// Package state persists conversation records as JSON documents.
package state

import (
	"context"
	"errors"
	"time"
)

// Store-managed document keys.
const (
	FieldID        = "id"
	FieldChatID    = "chat_id"
	FieldUpdatedAt = "updated_at"
)

// ErrStateNotFound indicates that no record matched a lookup.
var ErrStateNotFound = errors.New("state not found")

// Filter selects records by field equality. Keys may be dotted paths into
// nested objects, e.g. "user.id".
type Filter map[string]any

// Fields is a partial top-level update applied on top of a stored record.
type Fields map[string]any

// Store persists records of type T. T must serialise to a JSON object with
// "id", "chat_id" and "updated_at" members; the store owns "id" and "updated_at".
type Store[T any] interface {
	// Create stores rec and returns the stored copy with its assigned id.
	Create(ctx context.Context, rec *T) (*T, error)
	// FindOne returns the first record of the chat matching filter, or ErrStateNotFound.
	FindOne(ctx context.Context, chatID int64, filter Filter) (*T, error)
	// FindMany returns every record matching filter.
	FindMany(ctx context.Context, filter Filter) ([]*T, error)
	// GetOne returns the record with the given id, or ErrStateNotFound.
	GetOne(ctx context.Context, id string) (*T, error)
	// Update merges fields into the record. Unknown ids are ignored.
	Update(ctx context.Context, id string, fields Fields) error
	// Delete removes the record. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
}

// Sweeper removes records that have not been updated since cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}
