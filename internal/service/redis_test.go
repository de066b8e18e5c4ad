package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to the server named by REDIS_ADDR under a fresh key
// prefix, or skips the test when the variable is unset
func newTestRedis(t *testing.T) *database.Redis {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	redis, err := database.NewRedis(context.Background(), database.RedisOptions{
		Addr:      addr,
		KeyPrefix: "test-" + uuid.NewString(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redis.Close() })
	return redis
}

func TestLoginLockout_Redis(t *testing.T) {
	ctx := context.Background()
	lockout := NewLoginLockout(newTestRedis(t), 3, time.Second, 4*time.Second)

	for range 2 {
		d, err := lockout.Failure(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, d)
	}

	d, err := lockout.Failure(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, time.Second, d, "usernames are matched ignoring case")

	remaining, err := lockout.Locked(ctx, "alice")
	require.NoError(t, err)
	assert.Positive(t, remaining)
	assert.LessOrEqual(t, remaining, time.Second)

	for range 2 {
		_, err := lockout.Failure(ctx, "alice")
		require.NoError(t, err)
	}
	d, err = lockout.Failure(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d, "the second lockout doubles")

	require.NoError(t, lockout.Success(ctx, "alice"))
	remaining, err = lockout.Locked(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestRateLimiter_Redis(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(newTestRedis(t))

	for i := range 2 {
		res, err := limiter.Allow(ctx, "login:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "login:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.RetryAfter, time.Second)

	res, err = limiter.Allow(ctx, "login:10.0.0.2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are limited independently")
}
