package gateway

import (
	"context"
	"errors"
	"time"

	"entcal/internal/backend"
	"entcal/internal/model"
)

// RetryPolicy controls how failed backend fetches are repeated.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
}

// DefaultRetryPolicy retries twice: after 250ms, then after 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   4 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retryable reports whether err may go away on a second attempt.
// Unparseable payloads and 4xx answers other than 408/429 are final.
func retryable(err error) bool {
	if errors.Is(err, model.ErrUnparseablePayload) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
