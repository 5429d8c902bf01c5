package fetchpool

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type permanentNetErr struct{}

func (permanentNetErr) Error() string   { return "connection refused" }
func (permanentNetErr) Timeout() bool   { return false }
func (permanentNetErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(fmt.Errorf("x: %w", context.Canceled), 1))
	require.True(t, p.ShouldRetry(fmt.Errorf("x: %w", context.DeadlineExceeded), 1))
	require.True(t, p.ShouldRetry(fmt.Errorf("x: %w", timeoutErr{}), 1))
	require.False(t, p.ShouldRetry(fmt.Errorf("x: %w", permanentNetErr{}), 1))
	require.True(t, p.ShouldRetry(fmt.Errorf("plain failure"), 1))

	// Attempt bound.
	require.False(t, p.ShouldRetry(fmt.Errorf("plain failure"), 3))
}

func TestBackoffStaysWithinBounds(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Second)
	for attempt := 0; attempt < 8; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}
}

func TestRetryableStatus(t *testing.T) {
	t.Parallel()

	require.True(t, RetryableStatus(500))
	require.True(t, RetryableStatus(503))
	require.True(t, RetryableStatus(429))
	require.False(t, RetryableStatus(200))
	require.False(t, RetryableStatus(404))
	require.False(t, RetryableStatus(403))
}
