// Package resilience provides fault tolerance patterns for external service calls.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // requests allowed in half-open
	Interval            time.Duration // closed-state counter reset
	Timeout             time.Duration // open-state duration before half-open
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// DefaultBreakerConfig returns the settings used for model endpoints.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// NewBreaker builds a gobreaker circuit breaker that trips on consecutive failures
// or on a high failure ratio, logging every state change.
func NewBreaker(cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
