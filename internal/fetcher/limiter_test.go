package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveLimiter_Steps(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.Succeeded()
	assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)

	for range 20 {
		lim.Succeeded()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1, "ceiling is twice the base rate")

	lim.Throttled(0)
	assert.InDelta(t, 10.0, float64(lim.Limit()), 0.1)

	for range 10 {
		lim.Throttled(0)
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1, "floor is a quarter of the base rate")
}

func TestAdaptiveLimiter_Wait(t *testing.T) {
	require.NoError(t, NewAdaptiveLimiter(1000, 10).Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewAdaptiveLimiter(0.001, 0).Wait(ctx))
}

func TestAdaptiveLimiter_RetryAfterPausesCallers(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lim := NewAdaptiveLimiter(1000, 10)
	lim.now = func() time.Time { return now }

	lim.Throttled(time.Hour)
	assert.Equal(t, now.Add(time.Hour), lim.pausedUntil)

	lim.Throttled(time.Minute)
	assert.Equal(t, now.Add(time.Hour), lim.pausedUntil, "a shorter hint does not shorten the pause")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lim.Wait(ctx), context.DeadlineExceeded)

	now = now.Add(2 * time.Hour)
	require.NoError(t, lim.Wait(context.Background()))
}
