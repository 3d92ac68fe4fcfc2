package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordKeyPattern = "%s:rec:%s"
	chatKeyPattern   = "%s:chat:%d"
	scanBatchCount   = 100
)

// RedisStore persists each record as a JSON string under "<prefix>:rec:<id>"
// and indexes record ids per chat in the set "<prefix>:chat:<chat_id>".
// A positive ttl expires records that are not updated in time.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

var (
	_ Store[struct{}] = (*RedisStore[struct{}])(nil)
	_ Sweeper         = (*RedisStore[struct{}])(nil)
)

// NewRedisStore initializes a Redis-backed Store.
func NewRedisStore[T any](client *redis.Client, prefix string, ttl time.Duration, log *slog.Logger) *RedisStore[T] {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore[T]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log,
	}
}

func (s *RedisStore[T]) Create(ctx context.Context, rec *T) (*T, error) {
	if rec == nil {
		return nil, fmt.Errorf("create state: nil record")
	}

	doc, err := newDocument(rec)
	if err != nil {
		return nil, fmt.Errorf("create state: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.write(ctx, pipe, doc)
	})
	if err != nil {
		s.log.Error("failed to save state in redis", slog.String("id", doc.id()), slog.Any("error", err))
		return nil, fmt.Errorf("create state: %w", err)
	}

	return fromDocument[T](doc)
}

func (s *RedisStore[T]) FindOne(ctx context.Context, chatID int64, filter Filter) (*T, error) {
	want, err := normalizeMap(filter)
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}

	chatKey := s.chatKey(chatID)
	ids, err := s.client.SMembers(ctx, chatKey).Result()
	if err != nil {
		s.log.Error("failed to read chat index", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, fmt.Errorf("find state: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrStateNotFound
	}

	// xid ids sort by creation time
	slices.Sort(ids)

	docs, missing, err := s.load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}

	if len(missing) > 0 {
		if err := s.client.SRem(ctx, chatKey, toAny(missing)...).Err(); err != nil {
			s.log.Warn("failed to prune chat index", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}
	}

	for _, doc := range docs {
		if doc.chatID() == chatID && doc.matches(want) {
			return fromDocument[T](doc)
		}
	}

	return nil, ErrStateNotFound
}

func (s *RedisStore[T]) FindMany(ctx context.Context, filter Filter) ([]*T, error) {
	want, err := normalizeMap(filter)
	if err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}

	var result []*T
	err = s.scan(ctx, func(doc document) error {
		if !doc.matches(want) {
			return nil
		}
		rec, err := fromDocument[T](doc)
		if err != nil {
			return err
		}
		result = append(result, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}

	return result, nil
}

func (s *RedisStore[T]) GetOne(ctx context.Context, id string) (*T, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}

		s.log.Error("failed to get state from redis", slog.String("id", id), slog.Any("error", err))
		return nil, fmt.Errorf("get state: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", id, err)
	}

	return fromDocument[T](doc)
}

// Update merges fields inside a WATCH transaction on the record key.
func (s *RedisStore[T]) Update(ctx context.Context, id string, fields Fields) error {
	values, err := normalizeMap(fields)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	key := s.recordKey(id)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}

		doc, err := decodeDocument(data)
		if err != nil {
			return err
		}
		doc.merge(values)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.write(ctx, pipe, doc)
		})
		return err
	}, key)
	if err != nil {
		s.log.Error("failed to update state in redis", slog.String("id", id), slog.Any("error", err))
		return fmt.Errorf("update state: %w", err)
	}

	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, id string) error {
	key := s.recordKey(id)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("delete state: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.chatKey(doc.chatID()), id)
		return nil
	})
	if err != nil {
		s.log.Error("failed to delete state", slog.String("id", id), slog.Any("error", err))
		return fmt.Errorf("delete state: %w", err)
	}

	return nil
}

// Sweep removes records last updated before cutoff.
func (s *RedisStore[T]) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []string
	err := s.scan(ctx, func(doc document) error {
		if doc.updatedAt().Before(cutoff) {
			stale = append(stale, doc.id())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep states: %w", err)
	}

	removed := 0
	for _, id := range stale {
		if err := s.Delete(ctx, id); err != nil {
			s.log.Warn("failed to sweep state", slog.String("id", id), slog.Any("error", err))
			continue
		}
		removed++
	}

	return removed, nil
}

func (s *RedisStore[T]) write(ctx context.Context, cmd redis.Cmdable, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	chatKey := s.chatKey(doc.chatID())
	if err := cmd.Set(ctx, s.recordKey(doc.id()), data, s.ttl).Err(); err != nil {
		return err
	}
	if err := cmd.SAdd(ctx, chatKey, doc.id()).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		return cmd.Expire(ctx, chatKey, s.ttl).Err()
	}

	return nil
}

func (s *RedisStore[T]) load(ctx context.Context, ids []string) ([]document, []string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, err
	}

	var (
		docs    []document
		missing []string
	)
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}

		doc, err := decodeDocument([]byte(str))
		if err != nil {
			s.log.Warn("skipping undecodable state", slog.String("id", ids[i]), slog.Any("error", err))
			continue
		}
		docs = append(docs, doc)
	}

	return docs, missing, nil
}

func (s *RedisStore[T]) scan(ctx context.Context, fn func(document) error) error {
	var cursor uint64
	pattern := fmt.Sprintf(recordKeyPattern, s.prefix, "*")
	prefixLen := len(fmt.Sprintf(recordKeyPattern, s.prefix, ""))

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, scanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan states", slog.Any("error", err))
			return err
		}

		if len(keys) > 0 {
			ids := make([]string, len(keys))
			for i, key := range keys {
				ids[i] = key[prefixLen:]
			}

			docs, _, err := s.load(ctx, ids)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if err := fn(doc); err != nil {
					return err
				}
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore[T]) recordKey(id string) string {
	return fmt.Sprintf(recordKeyPattern, s.prefix, id)
}

func (s *RedisStore[T]) chatKey(chatID int64) string {
	return fmt.Sprintf(chatKeyPattern, s.prefix, chatID)
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
