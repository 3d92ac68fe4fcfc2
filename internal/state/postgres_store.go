package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	pgInsertState = `INSERT INTO chat_states (id, kind, chat_id, doc, updated_at)
VALUES (:id, :kind, :chat_id, :doc, :updated_at)`
	pgFindOneState = `SELECT doc FROM chat_states
WHERE kind = $1 AND chat_id = $2 AND doc @> $3::jsonb
ORDER BY created_at, id LIMIT 1`
	pgFindManyStates = `SELECT doc FROM chat_states
WHERE kind = $1 AND doc @> $2::jsonb
ORDER BY created_at, id`
	pgGetState    = `SELECT doc FROM chat_states WHERE kind = $1 AND id = $2`
	pgUpdateState = `UPDATE chat_states SET doc = doc || $1::jsonb, updated_at = $2
WHERE kind = $3 AND id = $4`
	pgDeleteState = `DELETE FROM chat_states WHERE kind = $1 AND id = $2`
	pgSweepStates = `DELETE FROM chat_states WHERE kind = $1 AND updated_at < $2`
)

type pgStateRow struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	ChatID    int64     `db:"chat_id"`
	Doc       string    `db:"doc"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresStore keeps records of one kind in the shared chat_states table
// (see internal/database/migrations). Filters are evaluated with JSONB
// containment, so a filter value that is itself an object or array matches
// any superset of it.
type PostgresStore[T any] struct {
	db   *sqlx.DB
	kind string
	log  *slog.Logger
}

var (
	_ Store[struct{}] = (*PostgresStore[struct{}])(nil)
	_ Sweeper         = (*PostgresStore[struct{}])(nil)
)

// NewPostgresStore initializes a Postgres-backed Store for records of the given kind.
func NewPostgresStore[T any](db *sqlx.DB, kind string, log *slog.Logger) *PostgresStore[T] {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresStore[T]{
		db:   db,
		kind: kind,
		log:  log,
	}
}

func (s *PostgresStore[T]) Create(ctx context.Context, rec *T) (*T, error) {
	if rec == nil {
		return nil, fmt.Errorf("create state: nil record")
	}

	doc, err := newDocument(rec)
	if err != nil {
		return nil, fmt.Errorf("create state: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("create state: %w", err)
	}

	row := pgStateRow{
		ID:        doc.id(),
		Kind:      s.kind,
		ChatID:    doc.chatID(),
		Doc:       string(data),
		UpdatedAt: doc.updatedAt(),
	}
	if _, err := s.db.NamedExecContext(ctx, pgInsertState, row); err != nil {
		s.log.Error("failed to insert state", slog.String("kind", s.kind), slog.Any("error", err))
		return nil, fmt.Errorf("create state: %w", err)
	}

	return fromDocument[T](doc)
}

func (s *PostgresStore[T]) FindOne(ctx context.Context, chatID int64, filter Filter) (*T, error) {
	contains, err := containment(filter)
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}

	var raw string
	if err := s.db.GetContext(ctx, &raw, pgFindOneState, s.kind, chatID, contains); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("find state: %w", err)
	}

	return s.decode(raw)
}

func (s *PostgresStore[T]) FindMany(ctx context.Context, filter Filter) ([]*T, error) {
	contains, err := containment(filter)
	if err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}

	var rows []string
	if err := s.db.SelectContext(ctx, &rows, pgFindManyStates, s.kind, contains); err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}

	result := make([]*T, 0, len(rows))
	for _, raw := range rows {
		rec, err := s.decode(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	return result, nil
}

func (s *PostgresStore[T]) GetOne(ctx context.Context, id string) (*T, error) {
	var raw string
	if err := s.db.GetContext(ctx, &raw, pgGetState, s.kind, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}

	return s.decode(raw)
}

func (s *PostgresStore[T]) Update(ctx context.Context, id string, fields Fields) error {
	patch, err := updatePatch(fields)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	now := timeNow().UTC()
	if _, err := s.db.ExecContext(ctx, pgUpdateState, patch, now, s.kind, id); err != nil {
		s.log.Error("failed to update state", slog.String("id", id), slog.Any("error", err))
		return fmt.Errorf("update state: %w", err)
	}

	return nil
}

func (s *PostgresStore[T]) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, pgDeleteState, s.kind, id); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}

	return nil
}

// Sweep removes records last updated before cutoff.
func (s *PostgresStore[T]) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, pgSweepStates, s.kind, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep states: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep states: %w", err)
	}

	return int(n), nil
}

func (s *PostgresStore[T]) decode(raw string) (*T, error) {
	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return nil, err
	}

	return fromDocument[T](doc)
}

// containment turns a dotted-path filter into the nested JSON object used
// with the @> operator: {"user.id": 1} becomes {"user":{"id":1}}.
func containment(filter Filter) (string, error) {
	root := make(map[string]any, len(filter))
	for path, value := range filter {
		parts := strings.Split(path, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}

	data, err := json.Marshal(root)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func updatePatch(fields Fields) (string, error) {
	values, err := normalizeMap(fields)
	if err != nil {
		return "", err
	}

	doc := document(values)
	delete(doc, FieldID)
	delete(doc, FieldChatID)
	doc.touch()

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
