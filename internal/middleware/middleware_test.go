package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func setNow(t *testing.T, now *time.Time) {
	t.Helper()

	prev := timeNow
	timeNow = func() time.Time { return *now }
	t.Cleanup(func() { timeNow = prev })
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache down")
}

func (failingCache) Delete(context.Context, string) error { return nil }

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	setNow(t, &now)

	cache := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Second))

	value, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	now = now.Add(time.Second)
	_, found, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "forever", "v", 0))
	require.NoError(t, cache.Delete(ctx, "forever"))
	_, found, _ = cache.Get(ctx, "forever")
	assert.False(t, found)
}

func TestRedisCache_PrefixAndExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client, "bot")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("bot:k"))

	value, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	mr.FastForward(time.Minute)
	_, found, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestThrottle_Allow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	setNow(t, &now)

	throttle := NewThrottle(NewMemoryCache(), time.Second, testLogger())
	ctx := context.Background()

	assert.True(t, throttle.Allow(ctx, 1, 10, "buy"))
	assert.False(t, throttle.Allow(ctx, 1, 10, "buy"), "repeat within window")
	assert.True(t, throttle.Allow(ctx, 1, 11, "buy"), "other user")
	assert.True(t, throttle.Allow(ctx, 2, 10, "buy"), "other chat")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, throttle.Allow(ctx, 1, 10, "sell"), "different data")
	assert.False(t, throttle.Allow(ctx, 1, 10, "sell"))

	now = now.Add(time.Second)
	assert.True(t, throttle.Allow(ctx, 1, 10, "sell"), "window elapsed")
}

func TestThrottle_AllowWithRedis(t *testing.T) {
	client, mr := setupTestRedis(t)
	throttle := NewThrottle(NewRedisCache(client, "bot"), 2*time.Second, testLogger())
	ctx := context.Background()

	assert.True(t, throttle.Allow(ctx, 1, 10, "buy"))
	assert.False(t, throttle.Allow(ctx, 1, 10, "buy"))

	mr.FastForward(2 * time.Second)
	assert.True(t, throttle.Allow(ctx, 1, 10, "buy"))
}

func TestThrottle_DisabledOrFailing(t *testing.T) {
	ctx := context.Background()

	disabled := NewThrottle(NewMemoryCache(), 0, testLogger())
	assert.True(t, disabled.Allow(ctx, 1, 1, "x"))
	assert.True(t, disabled.Allow(ctx, 1, 1, "x"))

	failing := NewThrottle(failingCache{}, time.Second, testLogger())
	assert.True(t, failing.Allow(ctx, 1, 1, "x"))
	assert.True(t, failing.Allow(ctx, 1, 1, "x"))
}

func TestLocalLocker_Serialises(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := locker.Lock(ctx, "chat:1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
	assert.Empty(t, locker.locks)
}

func TestLocalLocker_ContextTimeout(t *testing.T) {
	locker := NewLocalLocker()

	unlock, err := locker.Lock(context.Background(), "chat:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "chat:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(context.Background(), "chat:2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), "chat:1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, "bot", time.Minute, testLogger())

	unlock, err := locker.Lock(context.Background(), "chat:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("bot:lock:chat:1"))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "chat:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("bot:lock:chat:1"))

	again, err := locker.Lock(context.Background(), "chat:1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, "bot", time.Second, testLogger())

	unlock, err := locker.Lock(context.Background(), "chat:1")
	require.NoError(t, err)

	// The lock expired and another holder took it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("bot:lock:chat:1", "someone-else"))

	unlock()

	value, err := mr.Get("bot:lock:chat:1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestHTTPLogging_PassesThrough(t *testing.T) {
	handler := HTTPLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
