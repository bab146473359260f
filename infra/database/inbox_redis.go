// Package database opens connections to external stores.
package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis configuration. The server only takes a writer lock,
// so the pool stays small.
type RedisConfig struct {
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PingTimeout:  5 * time.Second,
	}
}

func NewRedis(redisURL string) (*redis.Client, error) {
	return NewRedisWithConfig(redisURL, DefaultRedisConfig())
}

// NewRedisWithConfig parses redisURL, applies cfg and pings the server. The
// client is closed when the ping fails.
func NewRedisWithConfig(redisURL string, cfg *RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
