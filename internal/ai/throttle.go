package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottleDelay is the baseline gap between two ingestion calls.
const DefaultThrottleDelay = 2 * time.Second

// Throttle spaces out oracle calls. One Throttle is shared by every caller that
// draws from the same rate budget and is safe for concurrent use.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows one call per delay. A non-positive delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next call may start or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
