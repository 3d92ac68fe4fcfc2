// Package health reports reachability of the bot's backing services.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	defaultCheckTimeout = 3 * time.Second
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Report is the outcome of one round of checks.
type Report struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Healthy reports whether every component passed.
func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	mu      sync.RWMutex
	log     *slog.Logger
	checks  map[string]Checkable
	timeout time.Duration
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:     log,
		checks:  make(map[string]Checkable),
		timeout: defaultCheckTimeout,
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all registered health checks concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]string, len(names))
	)

	for _, name := range names {
		c.mu.RLock()
		check := c.checks[name]
		c.mu.RUnlock()

		wg.Add(1)
		go func(name string, check Checkable) {
			defer wg.Done()

			result := StatusOK
			if err := check.HealthCheck(ctx); err != nil {
				result = err.Error()
				c.log.ErrorContext(ctx, "health check failed", slog.String("component", name), slog.Any("error", err))
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	report := Report{Status: StatusOK, Components: results}
	for _, result := range results {
		if result != StatusOK {
			report.Status = StatusDegraded
			break
		}
	}

	return report
}

// Handler serves the report as JSON, with 503 when any component fails.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(report); err != nil {
			c.log.WarnContext(r.Context(), "failed to write health report", slog.Any("error", err))
		}
	})
}

// DBPinger is satisfied by *sql.DB and *sqlx.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker verifies connectivity to a PostgreSQL database.
type DBChecker struct {
	db DBPinger
}

// NewDBChecker constructs a DBChecker.
func NewDBChecker(db DBPinger) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database to ensure it is reachable.
func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return errors.New("database is not configured")
	}
	return c.db.PingContext(ctx)
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker verifies that the Telegram bot API accepts the bot token.
type TelegramChecker struct {
	bot *telebot.Bot
}

// NewTelegramChecker constructs a TelegramChecker.
func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

// HealthCheck calls getMe. The telebot client has no per-call context, so a
// slow API is bounded by the HTTP client timeout rather than ctx.
func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bot == nil {
		return errors.New("telegram bot is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.bot.Raw("getMe", nil)
	return err
}
