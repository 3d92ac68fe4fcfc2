package state

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory in insertion order.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	docs  map[string]document
	order []string
}

var (
	_ Store[struct{}] = (*MemoryStore[struct{}])(nil)
	_ Sweeper         = (*MemoryStore[struct{}])(nil)
)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{docs: make(map[string]document)}
}

func (s *MemoryStore[T]) Create(_ context.Context, rec *T) (*T, error) {
	if rec == nil {
		return nil, fmt.Errorf("create state: nil record")
	}

	doc, err := newDocument(rec)
	if err != nil {
		return nil, fmt.Errorf("create state: %w", err)
	}

	s.mu.Lock()
	s.docs[doc.id()] = doc
	s.order = append(s.order, doc.id())
	s.mu.Unlock()

	return fromDocument[T](doc)
}

func (s *MemoryStore[T]) FindOne(_ context.Context, chatID int64, filter Filter) (*T, error) {
	want, err := normalizeMap(filter)
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		doc := s.docs[id]
		if doc.chatID() == chatID && doc.matches(want) {
			return fromDocument[T](doc)
		}
	}

	return nil, ErrStateNotFound
}

func (s *MemoryStore[T]) FindMany(_ context.Context, filter Filter) ([]*T, error) {
	want, err := normalizeMap(filter)
	if err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*T
	for _, id := range s.order {
		doc := s.docs[id]
		if !doc.matches(want) {
			continue
		}
		rec, err := fromDocument[T](doc)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	return result, nil
}

func (s *MemoryStore[T]) GetOne(_ context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrStateNotFound
	}

	return fromDocument[T](doc)
}

func (s *MemoryStore[T]) Update(_ context.Context, id string, fields Fields) error {
	values, err := normalizeMap(fields)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[id]; ok {
		doc.merge(values)
	}

	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(id)
	return nil
}

// Sweep removes records last updated before cutoff.
func (s *MemoryStore[T]) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []string
	for _, id := range s.order {
		if s.docs[id].updatedAt().Before(cutoff) {
			stale = append(stale, id)
		}
	}

	for _, id := range stale {
		s.remove(id)
	}

	return len(stale), nil
}

// Len returns the number of stored records.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore[T]) remove(id string) {
	if _, ok := s.docs[id]; !ok {
		return
	}
	delete(s.docs, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}
