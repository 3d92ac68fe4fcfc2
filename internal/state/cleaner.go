package state

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner removes conversation records that have been idle longer than maxAge.
type Cleaner struct {
	sweepers map[string]Sweeper
	log      *slog.Logger
	maxAge   time.Duration
	interval time.Duration
}

// NewCleaner constructs a Cleaner over the named sweepers.
func NewCleaner(sweepers map[string]Sweeper, log *slog.Logger, maxAge, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		sweepers: sweepers,
		log:      log,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || len(c.sweepers) == 0 || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.log != nil {
				if reason := ctx.Err(); reason != nil {
					c.log.Info("state cleaner stopped", slog.String("reason", reason.Error()))
				} else {
					c.log.Info("state cleaner stopped")
				}
			}
			return
		case <-ticker.C:
			c.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every sweeper once with the configured max age.
func (c *Cleaner) SweepOnce(ctx context.Context) int {
	return c.Sweep(ctx, c.maxAge)
}

// Sweep runs every sweeper once, removing records idle for longer than maxAge,
// and returns the number of removed records. A failing sweeper is logged and
// does not stop the others.
func (c *Cleaner) Sweep(ctx context.Context, maxAge time.Duration) int {
	if ctx.Err() != nil || maxAge <= 0 {
		return 0
	}

	cutoff := timeNow().Add(-maxAge)
	total := 0

	for name, sweeper := range c.sweepers {
		removed, err := sweeper.Sweep(ctx, cutoff)
		if err != nil {
			if c.log != nil {
				c.log.Error("state cleaner sweep failed", slog.String("store", name), slog.Any("error", err))
			}
			continue
		}

		if removed > 0 && c.log != nil {
			c.log.Info("stale states cleared", slog.String("store", name), slog.Int("count", removed))
		}
		total += removed
	}

	return total
}
