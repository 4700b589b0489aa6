package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// MaxRetries is the number of attempts made for a retryable call.
const MaxRetries = 3

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// withRetry runs fn up to MaxRetries times while it fails with a
// RetryableError.
func withRetry[T any](ctx context.Context, log *slog.Logger, backoff func(int) time.Duration, fn func() (T, error)) (T, error) {
	var out T
	var lastErr error
	for attempt := range MaxRetries {
		out, lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return out, lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable checker error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
