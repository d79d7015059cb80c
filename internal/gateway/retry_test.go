package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"entcal/internal/backend"
	"entcal/internal/model"
)

func TestBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 250*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(1))
	assert.Equal(t, time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(4))
	assert.Equal(t, 4*time.Second, p.Backoff(30))

	assert.Zero(t, RetryPolicy{}.Backoff(3))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New("connection reset"), true},
		{"server error", &backend.StatusError{Code: 503}, true},
		{"rate limited", fmt.Errorf("wrapped: %w", &backend.StatusError{Code: 429}), true},
		{"not found", &backend.StatusError{Code: 404}, false},
		{"unparseable", fmt.Errorf("x: %w", model.ErrUnparseablePayload), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
