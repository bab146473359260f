// Package ratelimit paces outbound calls to rate-limited upstream APIs.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Config holds the pacing for one upstream.
type Config struct {
	RequestsPerSecond float64 // 0 disables pacing
	BurstSize         int     // defaults to 1
}

// Limiter is a token bucket shared by every caller of one upstream. A nil or
// unlimited Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return &Limiter{}
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter == nil
}
