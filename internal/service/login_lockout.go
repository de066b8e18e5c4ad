package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prperemyshlev/hybrid-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// Lockout defaults
const (
	DefaultLockoutAttempts = 3
	DefaultLockoutDuration = 10 * time.Second
	DefaultLockoutMax      = time.Hour
)

// LoginGuard locks an account for a while after repeated failed logins
type LoginGuard interface {
	// Locked returns how long username stays locked, zero when it is not
	Locked(ctx context.Context, username string) (time.Duration, error)
	// Failure counts a failed login and returns the lockout it triggered, if any
	Failure(ctx context.Context, username string) (time.Duration, error)
	// Success forgets failed attempts and resets the backoff
	Success(ctx context.Context, username string) error
}

// LoginLockout is a Redis backed LoginGuard. Every lockout doubles the next
// one up to a maximum.
type LoginLockout struct {
	redis    *database.Redis
	attempts int
	base     time.Duration
	max      time.Duration
}

// NewLoginLockout creates a lockout; zero values use the defaults
func NewLoginLockout(redis *database.Redis, attempts int, base, maxDuration time.Duration) *LoginLockout {
	if attempts <= 0 {
		attempts = DefaultLockoutAttempts
	}
	if base <= 0 {
		base = DefaultLockoutDuration
	}
	if maxDuration < base {
		maxDuration = max(DefaultLockoutMax, base)
	}
	return &LoginLockout{redis: redis, attempts: attempts, base: base, max: maxDuration}
}

func (l *LoginLockout) key(kind, username string) string {
	return l.redis.Key("lockout", kind, strings.ToLower(username))
}

// Locked returns the remaining lockout of username
func (l *LoginLockout) Locked(ctx context.Context, username string) (time.Duration, error) {
	ttl, err := l.redis.Client.PTTL(ctx, l.key("until", username)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check lockout: %w", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Failure counts a failed login of username
func (l *LoginLockout) Failure(ctx context.Context, username string) (time.Duration, error) {
	attemptsKey := l.key("attempts", username)

	var incr *redis.IntCmd
	_, err := l.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey)
		pipe.Expire(ctx, attemptsKey, l.max)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count failed login: %w", err)
	}
	if incr.Val() < int64(l.attempts) {
		return 0, nil
	}

	durationKey := l.key("duration", username)
	duration := l.base
	stored, err := l.redis.Client.Get(ctx, durationKey).Int64()
	switch {
	case err == nil && stored > 0:
		duration = time.Duration(stored)
	case err != nil && !errors.Is(err, redis.Nil):
		return 0, fmt.Errorf("failed to read lockout backoff: %w", err)
	}

	next := min(duration*2, l.max)
	_, err = l.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.key("until", username), "1", duration)
		pipe.Set(ctx, durationKey, int64(next), 24*time.Hour)
		pipe.Del(ctx, attemptsKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to lock account: %w", err)
	}
	return duration, nil
}

// Success clears the failed attempts and the backoff of username
func (l *LoginLockout) Success(ctx context.Context, username string) error {
	err := l.redis.Client.Del(ctx,
		l.key("attempts", username),
		l.key("duration", username),
		l.key("until", username),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}
	return nil
}
