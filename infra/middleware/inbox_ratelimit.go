package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimiter is a fixed-window limiter keyed by client IP. It guards the
// endpoints that spend model calls.
type RateLimiter struct {
	requests map[string]*requestInfo
	mu       sync.Mutex
	limit    int
	window   time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

type requestInfo struct {
	count     int
	expiresAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*requestInfo),
		limit:    limit,
		window:   window,
		stopCh:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()

	return rl
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, info := range rl.requests {
		if now.After(info.expiresAt) {
			delete(rl.requests, key)
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		now := time.Now()

		rl.mu.Lock()
		info, exists := rl.requests[key]
		if !exists || now.After(info.expiresAt) {
			info = &requestInfo{expiresAt: now.Add(rl.window)}
			rl.requests[key] = info
		}
		if info.count >= rl.limit {
			retryAfter := int(info.expiresAt.Sub(now).Seconds()) + 1
			reset := info.expiresAt
			rl.mu.Unlock()

			setRateLimitHeaders(c, rl.limit, 0, reset)
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		info.count++
		remaining := rl.limit - info.count
		reset := info.expiresAt
		rl.mu.Unlock()

		setRateLimitHeaders(c, rl.limit, remaining, reset)
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, limit, remaining int, reset time.Time) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}
