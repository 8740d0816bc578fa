package aggregator

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMinInterval is the spacing between aggregator requests when none is configured.
const DefaultMinInterval = time.Second

// Limiter serializes aggregator requests: at most one in flight and at least
// minInterval between request starts. Create one per process and share it
// across every aggregator client.
type Limiter struct {
	inflight *semaphore.Weighted
	spacing  *rate.Limiter
}

// NewLimiter builds a limiter. A zero interval disables spacing but keeps serialization.
func NewLimiter(minInterval time.Duration) *Limiter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Limiter{
		inflight: semaphore.NewWeighted(1),
		spacing:  rate.NewLimiter(limit, 1),
	}
}

// Do waits for its turn and runs fn while holding the only in-flight slot.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.inflight.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.inflight.Release(1)

	if err := l.spacing.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
