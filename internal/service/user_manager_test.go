package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserManager_PrimaryWinsOverLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.primary.Repositories().User.Upsert(ctx, &domain.User{Username: "alice", Email: "fresh@x.com", PasswordHash: "h1"}))
	_, err := env.stores.Users.Put(domain.User{Username: "alice", Email: "stale@x.com", PasswordHash: "h0"})
	require.NoError(t, err)

	user, ok := env.users.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "fresh@x.com", user.Email)

	env.offline()
	user, ok = env.users.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "stale@x.com", user.Email)
}

func TestUserManager_SavesLocallyWhileOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.offline()

	require.NoError(t, env.users.Save(ctx, "bob", "bob@x.com", "pw123456"))

	user, ok := env.users.Get(ctx, "bob")
	require.True(t, ok)
	assert.Equal(t, "bob@x.com", user.Email)
	assert.True(t, env.users.Validate(ctx, "bob", "pw123456"))
	assert.Equal(t, 0, env.primary.Counts()[domain.KindUsers])
}

func TestUserManager_OfflineSignupIsPushedOnReconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.offline()

	require.NoError(t, env.users.Save(ctx, "bob", "bob@x.com", "pw123456"))
	_, err := env.primary.Repositories().User.GetByUsername(ctx, "bob")
	require.ErrorIs(t, err, repository.ErrUnavailable)

	env.online()
	assert.True(t, env.coord.OpportunisticCheck(ctx))

	user, err := env.primary.Repositories().User.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", user.Email)
	assert.True(t, env.coord.Ledger().IsSynced(domain.KindUsers, "bob"))

	fromManager, ok := env.users.Get(ctx, "bob")
	require.True(t, ok)
	assert.Equal(t, user.PasswordHash, fromManager.PasswordHash)
}

func TestUserManager_ValidateFoldReturnsStoredCasing(t *testing.T) {
	for _, offline := range []bool{false, true} {
		env := newTestEnv(t)
		ctx := context.Background()
		if offline {
			env.offline()
		}

		require.NoError(t, env.users.Create(ctx, "Alice", "alice@x.com", "Secret12"))

		for _, name := range []string{"ALICE", "alice", "Alice"} {
			canonical, ok := env.users.ValidateFold(ctx, name, "Secret12")
			assert.True(t, ok, name)
			assert.Equal(t, "Alice", canonical, name)
		}

		canonical, ok := env.users.ValidateFold(ctx, "alice", "wrong")
		assert.False(t, ok)
		assert.Equal(t, "Alice", canonical)

		canonical, ok = env.users.ValidateFold(ctx, "nobody", "Secret12")
		assert.False(t, ok)
		assert.Empty(t, canonical)

		assert.False(t, env.users.Validate(ctx, "alice", "Secret12"), "exact lookup is case sensitive")
	}
}

func TestUserManager_CreateReportsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))

	assert.ErrorIs(t, env.users.Create(ctx, "ALICE", "other@x.com", "Secret12"), ErrUsernameTaken)
	assert.ErrorIs(t, env.users.Create(ctx, "carol", "alice@x.com", "Secret12"), ErrEmailTaken)
	assert.ErrorIs(t, env.users.Save(ctx, "carol", "alice@x.com", "Secret12"), ErrEmailTaken)
}

func TestUserManager_ExistsChecksBothStores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))
	env.offline()
	require.NoError(t, env.users.Create(ctx, "bob", "bob@x.com", "Secret12"))
	env.primary.FailWrites(true)
	env.online()

	assert.True(t, env.users.Exists(ctx, "ALICE"))
	assert.True(t, env.users.Exists(ctx, "Bob"))
	assert.True(t, env.users.EmailExists(ctx, "bob@x.com"))
	assert.False(t, env.users.Exists(ctx, "carol"))
	assert.False(t, env.users.EmailExists(ctx, "carol@x.com"))
}

func TestUserManager_UpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))
	require.NoError(t, env.users.UpdatePassword(ctx, "alice", "Changed34"))
	assert.True(t, env.users.Validate(ctx, "alice", "Changed34"))
	assert.False(t, env.users.Validate(ctx, "alice", "Secret12"))

	assert.ErrorIs(t, env.users.UpdatePassword(ctx, "nobody", "Changed34"), ErrUserNotFound)
}

func TestUserManager_UpdatePasswordOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))
	env.offline()
	require.NoError(t, env.users.Create(ctx, "bob", "bob@x.com", "Secret12"))

	require.NoError(t, env.users.UpdatePassword(ctx, "bob", "Changed34"))
	assert.True(t, env.users.Validate(ctx, "bob", "Changed34"))

	// alice exists only in the unreachable primary store
	assert.ErrorIs(t, env.users.UpdatePassword(ctx, "alice", "Changed34"), ErrStorageUnavailable)
}

func TestUserManager_UpdatePasswordWhilePrimaryRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))
	env.primary.FailWrites(true)

	require.NoError(t, env.users.UpdatePassword(ctx, "alice", "Changed34"))
	local, ok := env.stores.Users.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "alice@x.com", local.Email)

	env.primary.FailWrites(false)
	assert.True(t, env.coord.ReconcileAll(ctx))
	assert.True(t, env.users.Validate(ctx, "alice", "Changed34"))
}

func TestUserManager_PrimaryWriteSupersedesLocalCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.offline()
	require.NoError(t, env.users.Create(ctx, "bob", "bob@x.com", "Secret12"))
	env.online()

	require.NoError(t, env.users.UpdatePassword(ctx, "bob", "Changed34"))

	_, ok := env.stores.Users.Get("bob")
	assert.False(t, ok)

	env.offline()
	assert.False(t, env.users.Validate(ctx, "bob", "Secret12"), "old password must not survive locally")
}

func TestUserManager_DeleteRemovesBothCopies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.primary.Repositories().User.Upsert(ctx, &domain.User{Username: "bob", Email: "bob@x.com", PasswordHash: "h"}))
	_, err := env.stores.Users.Put(domain.User{Username: "bob", Email: "bob@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, env.users.Delete(ctx, "bob"))
	_, ok := env.users.Get(ctx, "bob")
	assert.False(t, ok)

	env.offline()
	_, ok = env.users.Get(ctx, "bob")
	assert.False(t, ok)

	assert.ErrorIs(t, env.users.Delete(ctx, "bob"), ErrUserNotFound)
}

func TestUserManager_ListMergesPendingLocalUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, "carol", "carol@x.com", "Secret12"))
	env.offline()
	require.NoError(t, env.users.Create(ctx, "alice", "alice@x.com", "Secret12"))
	env.primary.FailWrites(true)
	env.online()

	users := env.users.List(ctx)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "carol", users[1].Username)
}

func TestUserManager_LocalFailureIsReported(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	env := newTestEnvAt(t, blocker)
	env.offline()

	err := env.users.Save(context.Background(), "bob", "bob@x.com", "Secret12")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
