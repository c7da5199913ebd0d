package wallet

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const pinAttemptPrefix = "pin_attempts:v1:"

// AttemptLimiter counts failed PIN verifications per wallet so repeated
// guessing locks the credential, analogous to login rate limiting.
type AttemptLimiter interface {
	Locked(ctx context.Context, walletID string) bool
	RecordFailure(ctx context.Context, walletID string)
	Reset(ctx context.Context, walletID string)
}

// RedisAttemptLimiter tracks failures in Redis with a rolling window.
// Cache errors fail open: an unavailable limiter never blocks a valid PIN.
type RedisAttemptLimiter struct {
	cache       *redis.Client
	maxFailures int64
	window      time.Duration
}

// NewRedisAttemptLimiter builds a limiter allowing maxFailures per window.
func NewRedisAttemptLimiter(cache *redis.Client, maxFailures int, window time.Duration) *RedisAttemptLimiter {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisAttemptLimiter{cache: cache, maxFailures: int64(maxFailures), window: window}
}

func (l *RedisAttemptLimiter) Locked(ctx context.Context, walletID string) bool {
	if l == nil || l.cache == nil {
		return false
	}
	count, err := l.cache.Get(ctx, pinAttemptPrefix+walletID).Int64()
	if err != nil {
		return false
	}
	return count >= l.maxFailures
}

func (l *RedisAttemptLimiter) RecordFailure(ctx context.Context, walletID string) {
	if l == nil || l.cache == nil {
		return
	}
	key := pinAttemptPrefix + walletID
	count, err := l.cache.Incr(ctx, key).Result()
	if err == nil && count == 1 {
		l.cache.Expire(ctx, key, l.window)
	}
}

func (l *RedisAttemptLimiter) Reset(ctx context.Context, walletID string) {
	if l == nil || l.cache == nil {
		return
	}
	l.cache.Del(ctx, pinAttemptPrefix+walletID)
}

// noopLimiter disables lockout tracking, used when Redis is absent.
type noopLimiter struct{}

func (noopLimiter) Locked(context.Context, string) bool   { return false }
func (noopLimiter) RecordFailure(context.Context, string) {}
func (noopLimiter) Reset(context.Context, string)         {}

// NewNoopLimiter returns a limiter that never locks.
func NewNoopLimiter() AttemptLimiter { return noopLimiter{} }
