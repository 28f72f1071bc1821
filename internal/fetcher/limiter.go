package fetcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/parcel-leads/internal/resilience"
)

const (
	stepUp      = 1.2
	stepDown    = 0.5
	ceilingMult = 2.0
	floorMult   = 0.25
)

// AdaptiveLimiter paces requests to one host. Each success steps the rate
// up toward twice the configured rate; each throttled response halves it,
// never below a quarter. A Retry-After from the server holds every caller
// back until it elapses.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	lim         *rate.Limiter
	base        rate.Limit
	pausedUntil time.Time
	now         func() time.Time
}

// NewAdaptiveLimiter starts at r requests per second with the given burst.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		lim:  rate.NewLimiter(r, burst),
		base: r,
		now:  time.Now,
	}
}

// Wait blocks until a request may be sent.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	a.mu.Lock()
	pause := a.pausedUntil.Sub(a.now())
	a.mu.Unlock()

	if pause > 0 {
		if err := resilience.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	return a.lim.Wait(ctx)
}

// Succeeded steps the rate up after an accepted request.
func (a *AdaptiveLimiter) Succeeded() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lim.SetLimit(min(a.lim.Limit()*stepUp, a.base*ceilingMult))
}

// Throttled halves the rate after a 429 and pauses for retryAfter when
// the server sent one.
func (a *AdaptiveLimiter) Throttled(retryAfter time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := max(a.lim.Limit()*stepDown, a.base*floorMult)
	a.lim.SetLimit(next)
	if retryAfter > 0 {
		if until := a.now().Add(retryAfter); until.After(a.pausedUntil) {
			a.pausedUntil = until
		}
	}
	zap.L().Warn("dataset host throttled, slowing down",
		zap.Float64("rate", float64(next)),
		zap.Duration("retry_after", retryAfter),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	return a.lim.Limit()
}
