package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL          = 30 * time.Second
	defaultRetryBackoff = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so a lease that
// expired and was taken by another holder is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// RedisLocker holds locks as SET NX PX keys so several processes share them.
type RedisLocker struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	backoff  time.Duration
	newToken func() string
	logger   Logger
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithRetryBackoff(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.backoff = d
		}
	}
}

func WithTokenSource(fn func() string) RedisOption {
	return func(l *RedisLocker) { l.newToken = fn }
}

func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

func NewRedisLocker(client redis.UniversalClient, log Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:   client,
		prefix:   "lock:",
		ttl:      defaultTTL,
		backoff:  defaultRetryBackoff,
		newToken: func() string { return uuid.New().String() },
		logger:   log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := l.newToken()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.backoff):
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil && l.logger != nil {
				l.logger.Warn("lock release failed", map[string]interface{}{
					"key":   redisKey,
					"error": err.Error(),
				})
			}
		})
	}, nil
}
