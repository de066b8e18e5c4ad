package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetManager_ResetConsumesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "alice", 0)
	require.NoError(t, err)

	sent := env.mailer.ofKind("reset")
	require.Len(t, sent, 1)
	assert.Equal(t, token, sent[0].Token)

	rt, ok := env.resets.Validate(ctx, token)
	require.True(t, ok)
	assert.Equal(t, "alice", rt.Username)

	username, err := env.resets.Reset(ctx, token, "Changed34")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, ok = env.resets.Validate(ctx, token)
	assert.False(t, ok)
	assert.True(t, env.users.Validate(ctx, "alice", "Changed34"))

	_, err = env.resets.Reset(ctx, token, "Another56")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetManager_GenerateByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "  ALICE@x.com ", 0)
	require.NoError(t, err)

	rt, ok := env.resets.Validate(ctx, token)
	require.True(t, ok)
	assert.Equal(t, "alice", rt.Username)
	assert.Equal(t, "alice@x.com", rt.Email)

	_, err = env.resets.Generate(ctx, "nobody", 0)
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestResetManager_OfflineTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.offline()
	require.NoError(t, env.users.Create(ctx, "dave", "dave@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "dave", 0)
	require.NoError(t, err)
	assert.Empty(t, env.mailer.ofKind("reset"))

	_, ok := env.resets.Validate(ctx, token)
	require.True(t, ok)

	env.clock.Advance(61 * time.Minute)
	_, ok = env.resets.Validate(ctx, token)
	assert.False(t, ok)

	_, found := env.stores.ResetTokens.Get(token)
	assert.False(t, found)
}

func TestResetManager_PrimaryExpiredTokenIsDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "alice", 10*time.Minute)
	require.NoError(t, err)

	env.clock.Advance(11 * time.Minute)
	_, ok := env.resets.Validate(ctx, token)
	assert.False(t, ok)
	assert.Equal(t, 0, env.primary.Counts()[domain.KindResetTokens])
}

func TestResetManager_FailedResetKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.offline()

	// the account lives only in the unreachable primary store
	_, err := env.stores.ResetTokens.Put(domain.ResetToken{
		Token:    "ghost-token",
		Username: "ghost",
		Email:    "ghost@x.com",
		Expiry:   env.clock.Now().Add(time.Hour).Unix(),
		Created:  env.clock.Now().Unix(),
	})
	require.NoError(t, err)

	_, err = env.resets.Reset(ctx, "ghost-token", "Changed34")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, ok := env.resets.Validate(ctx, "ghost-token")
	assert.True(t, ok)
}

func TestResetManager_ConsumedWhilePrimaryRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "alice", 0)
	require.NoError(t, err)

	env.primary.FailWrites(true)
	_, err = env.resets.Reset(ctx, token, "Changed34")
	require.NoError(t, err)

	_, ok := env.resets.Validate(ctx, token)
	assert.False(t, ok, "a revoked token must not be accepted from the primary copy")

	env.primary.FailWrites(false)
	require.True(t, env.coord.ReconcileAll(ctx))

	assert.Equal(t, 0, env.primary.Counts()[domain.KindResetTokens])
	assert.True(t, env.users.Validate(ctx, "alice", "Changed34"))
}

func TestResetManager_OfflineResetIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.offline()
	require.NoError(t, env.users.Create(ctx, "dave", "dave@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "dave", 0)
	require.NoError(t, err)

	_, err = env.resets.Reset(ctx, token, "Changed34")
	require.NoError(t, err)
	_, ok := env.resets.Validate(ctx, token)
	assert.False(t, ok)

	env.online()
	require.True(t, env.coord.OpportunisticCheck(ctx))

	_, ok = env.resets.Validate(ctx, token)
	assert.False(t, ok)
	assert.True(t, env.users.Validate(ctx, "dave", "Changed34"))
}

func TestResetManager_ConcurrentResetsUseTokenOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	token, err := env.resets.Generate(ctx, "alice", 0)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.resets.Reset(ctx, token, "Changed34"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestResetManager_CleanupExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	_, err := env.resets.Generate(ctx, "alice", 10*time.Minute)
	require.NoError(t, err)
	live, err := env.resets.Generate(ctx, "alice", 2*time.Hour)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	assert.Equal(t, 1, env.resets.CleanupExpired(ctx))

	_, ok := env.resets.Info(ctx, live)
	assert.True(t, ok)
}
