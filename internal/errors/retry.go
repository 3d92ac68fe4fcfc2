package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// WithRetry runs fn until it succeeds, returns a non-retryable error or the
// attempts are exhausted. A retryable error asking for a longer pause than
// MaxBackoff is returned immediately.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt == MaxRetries {
			return err
		}

		wait := calculateBackoffDuration(attempt + 1)
		if after := RetryAfter(err); after > 0 {
			if after > MaxBackoff {
				return err
			}
			wait = max(wait, after)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

// RetryAfter returns the pause requested by the remote side, if any.
func RetryAfter(err error) time.Duration {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.RetryAfter
	}

	return 0
}

func calculateBackoffDuration(attempt int) time.Duration {
	delay := float64(InitialBackoff) * math.Pow(BackoffMultiplier, float64(attempt))
	backoff := time.Duration(delay)
	if backoff > MaxBackoff {
		return MaxBackoff
	}

	return backoff
}
