package service

import (
	"context"
	"errors"
	"sort"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
	"go.uber.org/zap"
)

// burner is implemented by hashers that can spend the time of a comparison
// without a digest
type burner interface {
	Burn(password string)
}

// UserManager stores accounts in the primary store, falling back to the local store
type UserManager struct {
	hybrid
	users  repository.UserRepository
	local  *secondary.UserStore
	hasher PasswordHasher
}

// NewUserManager creates a user manager
func NewUserManager(b Backend, hasher PasswordHasher) *UserManager {
	return &UserManager{
		hybrid: newHybrid(b, "users"),
		users:  b.Primary.User,
		local:  b.Secondary.Users,
		hasher: hasher,
	}
}

// Save hashes password and stores the account, replacing an existing one with the same username
func (m *UserManager) Save(ctx context.Context, username, email, password string) error {
	digest, err := m.hasher.Hash(password)
	if err != nil {
		return err
	}
	return m.write(ctx, domain.User{Username: username, Email: email, PasswordHash: digest}, false)
}

// Create stores a new account; the username and email must not be taken in the primary store
func (m *UserManager) Create(ctx context.Context, username, email, password string) error {
	digest, err := m.hasher.Hash(password)
	if err != nil {
		return err
	}
	return m.write(ctx, domain.User{Username: username, Email: email, PasswordHash: digest}, true)
}

func (m *UserManager) write(ctx context.Context, user domain.User, create bool) error {
	m.checkSync(ctx)

	unlock := m.local.Lock(user.Username)
	defer unlock()

	if m.online(ctx) {
		var err error
		if create {
			err = m.users.Create(ctx, &user)
		} else {
			err = m.users.Upsert(ctx, &user)
		}

		switch {
		case err == nil:
			m.discardLocal(user.Username)
			return nil
		case errors.Is(err, repository.ErrDuplicateUsername):
			return ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			return ErrEmailTaken
		}
		m.absorb(err, "Primary store write failed, saving user locally", zap.String("username", user.Username))
	}

	if _, err := m.local.Put(user); err != nil {
		return m.localFailure(err, "Failed to save user locally", zap.String("username", user.Username))
	}
	m.logger.Info("User saved locally", zap.String("username", user.Username))

	m.checkSync(ctx)
	return nil
}

// discardLocal drops the local copy of a user after the primary store accepted a newer one
func (m *UserManager) discardLocal(username string) {
	if _, err := m.local.Delete(username); err != nil {
		m.logger.Warn("Failed to drop superseded local user", zap.String("username", username), zap.Error(err))
	}
}

// Get returns the user with exactly this username
func (m *UserManager) Get(ctx context.Context, username string) (*domain.User, bool) {
	return lookup(ctx, &m.hybrid, username,
		func(ctx context.Context) (*domain.User, error) { return m.users.GetByUsername(ctx, username) },
		func() (domain.User, bool) { return m.local.Get(username) },
	)
}

// GetFold returns the user whose username matches ignoring case, with its stored casing
func (m *UserManager) GetFold(ctx context.Context, username string) (*domain.User, bool) {
	return lookup(ctx, &m.hybrid, username,
		func(ctx context.Context) (*domain.User, error) { return m.users.GetByUsernameFold(ctx, username) },
		func() (domain.User, bool) { return m.local.GetFold(username) },
	)
}

// GetByEmail returns the user registered with email
func (m *UserManager) GetByEmail(ctx context.Context, email string) (*domain.User, bool) {
	return lookup(ctx, &m.hybrid, email,
		func(ctx context.Context) (*domain.User, error) { return m.users.GetByEmail(ctx, email) },
		func() (domain.User, bool) { return m.local.GetByEmail(email) },
	)
}

// Exists reports whether username is taken, ignoring case
func (m *UserManager) Exists(ctx context.Context, username string) bool {
	_, ok := m.GetFold(ctx, username)
	return ok
}

// EmailExists reports whether email is registered
func (m *UserManager) EmailExists(ctx context.Context, email string) bool {
	_, ok := m.GetByEmail(ctx, email)
	return ok
}

// Validate checks the password of the user with exactly this username
func (m *UserManager) Validate(ctx context.Context, username, password string) bool {
	user, found := m.Get(ctx, username)
	return m.verify(user, found, password)
}

// ValidateFold checks the password of the user matching username ignoring case.
// It returns the stored username when the user exists, so callers can tell
// an unknown user from a wrong password.
func (m *UserManager) ValidateFold(ctx context.Context, username, password string) (string, bool) {
	user, found := m.GetFold(ctx, username)
	ok := m.verify(user, found, password)
	if !found {
		return "", false
	}
	return user.Username, ok
}

// verify always performs one digest comparison, known user or not
func (m *UserManager) verify(user *domain.User, found bool, password string) bool {
	if !found {
		if b, ok := m.hasher.(burner); ok {
			b.Burn(password)
		}
		return false
	}
	return m.hasher.Verify(password, user.PasswordHash)
}

// UpdatePassword replaces the password of username
func (m *UserManager) UpdatePassword(ctx context.Context, username, password string) error {
	digest, err := m.hasher.Hash(password)
	if err != nil {
		return err
	}

	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	primaryMissing := true
	if m.online(ctx) {
		err := m.users.UpdatePassword(ctx, username, digest)
		switch {
		case err == nil:
			m.discardLocal(username)
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			primaryMissing = false
			m.absorb(err, "Primary store password update failed, updating locally", zap.String("username", username))
		}
	} else {
		primaryMissing = false
	}

	updated, err := m.local.UpdatePassword(username, digest)
	if err != nil {
		return m.localFailure(err, "Failed to update password locally", zap.String("username", username))
	}
	if !updated {
		if primaryMissing {
			return ErrUserNotFound
		}
		// the account may live only in the unreachable primary store
		return m.copyForUpdate(ctx, username, digest)
	}

	m.checkSync(ctx)
	return nil
}

// copyForUpdate stores a local copy of a primary-only user with the new digest.
// It needs the primary store for the remaining fields, so it fails when that is unreachable.
func (m *UserManager) copyForUpdate(ctx context.Context, username, digest string) error {
	user, err := m.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		m.absorb(err, "Cannot read user to update password locally", zap.String("username", username))
		return ErrStorageUnavailable
	}

	user.PasswordHash = digest
	if _, err := m.local.Put(*user); err != nil {
		return m.localFailure(err, "Failed to update password locally", zap.String("username", username))
	}
	m.checkSync(ctx)
	return nil
}

// Delete removes the user from both stores
func (m *UserManager) Delete(ctx context.Context, username string) error {
	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	deleted := false
	if m.online(ctx) {
		err := m.users.Delete(ctx, username)
		switch {
		case err == nil:
			deleted = true
		case !errors.Is(err, repository.ErrNotFound):
			m.absorb(err, "Primary store delete failed, the primary copy remains", zap.String("username", username))
		}
	} else {
		m.logger.Warn("Primary store unreachable, deleting local copy only", zap.String("username", username))
	}

	removed, err := m.local.Delete(username)
	if err != nil {
		return m.localFailure(err, "Failed to delete local user", zap.String("username", username))
	}
	if !deleted && !removed {
		return ErrUserNotFound
	}
	return nil
}

// List returns every user ordered by username: primary records first, then
// local records not yet pushed under a username unknown to the primary store
func (m *UserManager) List(ctx context.Context) []domain.User {
	seen := make(map[string]bool)
	var users []domain.User

	if m.online(ctx) {
		primary, err := m.users.List(ctx)
		if err != nil {
			m.absorb(err, "Primary store list failed, listing local users only")
		}
		for _, u := range primary {
			seen[u.Username] = true
			users = append(users, *u)
		}
	}

	for _, u := range m.local.List() {
		if !seen[u.Username] {
			users = append(users, u)
		}
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}
