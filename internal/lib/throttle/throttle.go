// Package throttle counts failed login attempts in Redis and blocks an
// identifier once it exhausts its budget, until the cooldown expires.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTooManyAttempts  = errors.New("too many failed attempts")
	ErrRedisUnavailable = errors.New("throttle backend unavailable")
)

const keyPrefix = "vidshare:login:"

type Limiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	cooldown    time.Duration
}

func New(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *Limiter {
	return &Limiter{
		redis:       client,
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

// Check returns ErrTooManyAttempts once key has maxAttempts failures recorded.
func (l *Limiter) Check(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, redisKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}

	return nil
}

// Fail records a failed attempt. The window is fixed: its TTL is set on the
// first failure only.
func (l *Limiter) Fail(ctx context.Context, key string) error {
	k := redisKey(key)

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}

	return nil
}

// Reset clears the counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func redisKey(identifier string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(identifier))
}
