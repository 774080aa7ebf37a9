package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker coordinates holders across processes sharing one redis.
type RedisLocker struct {
	Client *redis.Client
	Prefix string
}

func NewRedisLocker(opt *redis.Options, prefix string) *RedisLocker {
	return &RedisLocker{Client: redis.NewClient(opt), Prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	full := l.Prefix + key
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SETNX %s: %w", full, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.Client, []string{full}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("redis release %s: %w", full, err)
		}
		return nil
	}, nil
}

func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.Client.Ping(ctx).Err()
}

func (l *RedisLocker) Close() error {
	return l.Client.Close()
}
