package inference

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/openai/openai-go"
)

// RetryPolicy bounds the retry behavior for transient inference failures.
type RetryPolicy struct {
	// MaxAttempts is the total attempt ceiling, first try included.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the configured defaults: 3 attempts,
// 250ms base, 5s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Backoff returns the delay before the given retry (attempt is 1-based:
// the delay after the first failed attempt is Backoff(1)). The delay grows
// exponentially, is capped at MaxDelay, and carries up to 50% jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d + jitter
}

// sleep waits for the backoff delay or until the context is cancelled.
func (p RetryPolicy) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isTransient reports whether an error is worth retrying: timeouts, 5xx
// responses, and connection-level failures. Quota, auth, and malformed
// request errors are permanent and surface immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode >= 500 || apierr.StatusCode == 408
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	// Anything else without an HTTP status is connection-level
	// (reset, EOF, DNS) and assumed transient.
	return true
}
