package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sokoni/server/internal/port/outbound"
)

const rateLimitKeyPrefix = "ratelimit:"

// rateLimiter implements outbound.RateLimiterPort with a sliding window
// kept in a sorted set scored by nanosecond timestamps.
type rateLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client redis.UniversalClient) outbound.RateLimiterPort {
	return &rateLimiter{client: client, now: time.Now}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := rateLimitKeyPrefix + key
	now := r.now().UnixNano()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	var countCmd *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(now-window.Nanoseconds(), 10))
		pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(now), Member: member})
		countCmd = pipe.ZCard(ctx, fullKey)
		pipe.Expire(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if countCmd.Val() > int64(limit) {
		// Rejected attempts do not consume the window
		if err := r.client.ZRem(ctx, fullKey, member).Err(); err != nil {
			return false, fmt.Errorf("rate limit %s: %w", key, err)
		}
		return false, nil
	}
	return true, nil
}

func (r *rateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	fullKey := rateLimitKeyPrefix + key
	now := r.now().UnixNano()

	count, err := r.client.ZCount(ctx, fullKey, strconv.FormatInt(now-window.Nanoseconds(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*rateLimiter)(nil)
