package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/hybrid-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimit is the outcome of one rate limit check
type RateLimit struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimit, error)
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	redis *database.Redis
	clock func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis, clock: time.Now}
}

// Allow records the request and reports whether it fits in the sliding window.
// Rejected requests are not recorded.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimit, error) {
	now := r.clock()
	windowStart := now.Add(-window)
	result := RateLimit{Limit: limit}

	// Sliding window log: one sorted set member per accepted request, scored by time
	redisKey := r.redis.Key("ratelimit", key)

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := r.redis.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
		card = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to read rate limit window: %w", err)
	}

	count := int(card.Val())
	if count >= limit {
		result.RetryAfter = window
		if entries := oldest.Val(); len(entries) > 0 {
			oldestTime := time.UnixMilli(int64(entries[0].Score))
			result.RetryAfter = max(window-now.Sub(oldestTime), time.Second)
		}
		return result, nil
	}

	// Add current request to the set with current timestamp as score
	member := fmt.Sprintf("%d", now.UnixNano())
	_, err = r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		pipe.Expire(ctx, redisKey, window+time.Minute)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to record request: %w", err)
	}

	result.Allowed = true
	result.Remaining = limit - count - 1
	return result, nil
}
