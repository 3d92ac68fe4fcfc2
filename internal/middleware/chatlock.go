package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 25 * time.Millisecond
	unlockTimeout    = 2 * time.Second
)

// Locker provides mutual exclusion per key.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// LocalLocker serialises holders of the same key within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds keys across processes with SET NX and a random token.
// A lock whose holder died expires after ttl.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, log *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, retry: defaultLockRetry, log: log}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + ":lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()

		if err := releaseScript.Run(uctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.log.WarnContext(uctx, "failed to release lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

// ChatLock runs updates of the same chat one at a time. When the lock cannot
// be taken within timeout the update is handled without it.
func ChatLock(locker Locker, timeout time.Duration, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if locker == nil || c.Chat() == nil {
				return next(c)
			}

			ctx := handlers.Context(c)
			lockCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				lockCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			unlock, err := locker.Lock(lockCtx, fmt.Sprintf("chat:%d", c.Chat().ID))
			if err != nil {
				log.WarnContext(ctx, "handling update without chat lock",
					slog.Int64("chat_id", c.Chat().ID),
					slog.Any("error", err),
				)
				return next(c)
			}
			defer unlock()

			return next(c)
		}
	}
}
