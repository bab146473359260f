package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"inbox_server/pkg/apperr"
)

const (
	DefaultLockKey = "inbox:enrich:lock"
	DefaultLockTTL = 10 * time.Minute
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another writer is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock is a single-writer lock shared by every process pointed at the same
// Redis. It implements out.WriterLock. A held lock is renewed every third of its
// TTL until released, so runs longer than the TTL keep it.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration, log zerolog.Logger) *RedisLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		log:    log.With().Str("component", "redis_lock").Logger(),
	}
}

// Acquire takes the lock with SET NX PX. A held lock yields a BUSY error and a
// Redis failure a STORE_ERROR.
func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, apperr.StoreFailed("lock", l.key, err)
	}
	if !ok {
		return nil, apperr.Busy("enriched inbox")
	}

	l.log.Debug().Str("key", l.key).Dur("ttl", l.ttl).Msg("writer lock acquired")

	renewCtx, stopRenew := context.WithCancel(context.Background())
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		l.keepAlive(renewCtx, l.ttl/3, func(ctx context.Context) (bool, error) {
			n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			return n == 1, err
		})
	}()

	release := func() {
		stopRenew()
		<-renewDone

		// detached from ctx so a cancelled run still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Int()
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			l.log.Warn().Err(err).Str("key", l.key).Msg("writer lock release failed, waiting for ttl")
		case n == 0:
			l.log.Warn().Str("key", l.key).Msg("writer lock expired before release")
		default:
			l.log.Debug().Str("key", l.key).Msg("writer lock released")
		}
	}
	return release, nil
}

// keepAlive calls extend every interval until ctx is done or extend reports the
// lock is no longer ours. Transient errors are retried on the next tick.
func (l *RedisLock) keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error)) {
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, interval)
			ok, err := extend(extendCtx)
			cancel()
			switch {
			case err != nil:
				l.log.Warn().Err(err).Str("key", l.key).Msg("writer lock renewal failed, retrying")
			case !ok:
				l.log.Error().Str("key", l.key).Msg("writer lock lost before release")
				return
			default:
				l.log.Debug().Str("key", l.key).Msg("writer lock renewed")
			}
		}
	}
}

// Ping checks connectivity; used by the health endpoint.
func (l *RedisLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *RedisLock) Close() error {
	return l.client.Close()
}
