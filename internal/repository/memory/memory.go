// Package memory provides an in-process primary store whose reachability can be switched off.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
)

// Store keeps every entity in maps guarded by one mutex
type Store struct {
	mu            sync.Mutex
	available     bool
	failWrites    bool
	users         map[string]domain.User
	sessions      map[string]domain.Session
	verifications map[string]domain.VerificationToken
	resetTokens   map[string]domain.ResetToken
}

// New creates an empty, reachable store
func New() *Store {
	return &Store{
		available:     true,
		users:         make(map[string]domain.User),
		sessions:      make(map[string]domain.Session),
		verifications: make(map[string]domain.VerificationToken),
		resetTokens:   make(map[string]domain.ResetToken),
	}
}

// Repositories returns repository views over the store
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:         &userRepository{s},
		Session:      &sessionRepository{s},
		Verification: &verificationRepository{s},
		ResetToken:   &resetTokenRepository{s},
	}
}

// IsAvailable implements repository.Prober
func (s *Store) IsAvailable(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// SetAvailable switches the store on or off; an unavailable store fails every call
func (s *Store) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

// FailWrites makes every mutation fail while reads keep working
func (s *Store) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

// Counts returns the number of stored records per kind
func (s *Store) Counts() map[domain.EntityKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[domain.EntityKind]int{
		domain.KindUsers:        len(s.users),
		domain.KindSessions:     len(s.sessions),
		domain.KindVerification: len(s.verifications),
		domain.KindResetTokens:  len(s.resetTokens),
	}
}

// read locks the store for a query; callers must call s.mu.Unlock when err is nil
func (s *Store) read() error {
	s.mu.Lock()
	if !s.available {
		s.mu.Unlock()
		return fmt.Errorf("memory store: %w", repository.ErrUnavailable)
	}
	return nil
}

// write locks the store for a mutation; callers must call s.mu.Unlock when err is nil
func (s *Store) write() error {
	if err := s.read(); err != nil {
		return err
	}
	if s.failWrites {
		s.mu.Unlock()
		return fmt.Errorf("memory store: write rejected: %w", repository.ErrUnavailable)
	}
	return nil
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if err := r.conflict(*user, false); err != nil {
		return err
	}
	r.s.users[user.Username] = stripUser(*user)
	return nil
}

func (r *userRepository) Upsert(_ context.Context, user *domain.User) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if err := r.conflict(*user, true); err != nil {
		return err
	}
	r.s.users[user.Username] = stripUser(*user)
	return nil
}

// conflict emulates the unique constraints on username, LOWER(username) and email
func (r *userRepository) conflict(user domain.User, replace bool) error {
	for key, existing := range r.s.users {
		if key == user.Username {
			if !replace {
				return fmt.Errorf("user %s: %w", user.Username, repository.ErrDuplicateUsername)
			}
			continue
		}
		if strings.EqualFold(key, user.Username) {
			return fmt.Errorf("user %s: %w", user.Username, repository.ErrDuplicateUsername)
		}
		if existing.Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Username, repository.ErrDuplicateEmail)
		}
	}
	return nil
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	user, ok := r.s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, repository.ErrNotFound)
	}
	return &user, nil
}

func (r *userRepository) GetByUsernameFold(_ context.Context, username string) (*domain.User, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	if user, ok := r.s.users[username]; ok {
		return &user, nil
	}
	for _, key := range sortedKeys(r.s.users) {
		if strings.EqualFold(key, username) {
			user := r.s.users[key]
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, repository.ErrNotFound)
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	for _, key := range sortedKeys(r.s.users) {
		if user := r.s.users[key]; user.Email == email {
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, repository.ErrNotFound)
}

func (r *userRepository) UpdatePassword(_ context.Context, username, passwordHash string) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	user, ok := r.s.users[username]
	if !ok {
		return fmt.Errorf("user %s: %w", username, repository.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	r.s.users[username] = user
	return nil
}

func (r *userRepository) Delete(_ context.Context, username string) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[username]; !ok {
		return fmt.Errorf("user %s: %w", username, repository.ErrNotFound)
	}
	delete(r.s.users, username)
	return nil
}

func (r *userRepository) List(_ context.Context) ([]*domain.User, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	users := make([]*domain.User, 0, len(r.s.users))
	for _, key := range sortedKeys(r.s.users) {
		user := r.s.users[key]
		users = append(users, &user)
	}
	return users, nil
}

type sessionRepository struct{ s *Store }

func (r *sessionRepository) Upsert(_ context.Context, session *domain.Session) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	for username, existing := range r.s.sessions {
		if username != session.Username && existing.Token == session.Token {
			return fmt.Errorf("session of %s: %w", session.Username, repository.ErrDuplicateToken)
		}
	}
	stored := *session
	stored.Updated = 0
	stored.Revoked = false
	r.s.sessions[session.Username] = stored
	return nil
}

func (r *sessionRepository) Get(_ context.Context, username string) (*domain.Session, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[username]
	if !ok {
		return nil, fmt.Errorf("session of %s: %w", username, repository.ErrNotFound)
	}
	return &session, nil
}

func (r *sessionRepository) Touch(_ context.Context, username, token string, now, newExpiry int64) (*domain.Session, error) {
	if err := r.s.write(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[username]
	if !ok || session.Token != token || session.Expired(now) {
		return nil, fmt.Errorf("renew session of %s: %w", username, repository.ErrNotFound)
	}
	session.Expiry = newExpiry
	r.s.sessions[username] = session
	return &session, nil
}

func (r *sessionRepository) Delete(_ context.Context, username, token string) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[username]
	if !ok || (token != "" && session.Token != token) {
		return fmt.Errorf("session of %s: %w", username, repository.ErrNotFound)
	}
	delete(r.s.sessions, username)
	return nil
}

func (r *sessionRepository) DeleteExpired(_ context.Context, now int64) (int64, error) {
	if err := r.s.write(); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var removed int64
	for username, session := range r.s.sessions {
		if session.Expired(now) {
			delete(r.s.sessions, username)
			removed++
		}
	}
	return removed, nil
}

type verificationRepository struct{ s *Store }

func (r *verificationRepository) Upsert(_ context.Context, token *domain.VerificationToken) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	for username, existing := range r.s.verifications {
		if username != token.Username && existing.Token == token.Token {
			return fmt.Errorf("verification of %s: %w", token.Username, repository.ErrDuplicateToken)
		}
	}
	stored := *token
	stored.Updated = 0
	r.s.verifications[token.Username] = stored
	return nil
}

func (r *verificationRepository) Get(_ context.Context, username string) (*domain.VerificationToken, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	v, ok := r.s.verifications[username]
	if !ok {
		return nil, fmt.Errorf("verification of %s: %w", username, repository.ErrNotFound)
	}
	return &v, nil
}

func (r *verificationRepository) MarkVerified(_ context.Context, username string) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	v, ok := r.s.verifications[username]
	if !ok {
		return fmt.Errorf("verification of %s: %w", username, repository.ErrNotFound)
	}
	v.Verified = true
	r.s.verifications[username] = v
	return nil
}

func (r *verificationRepository) Delete(_ context.Context, username string) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.verifications[username]; !ok {
		return fmt.Errorf("verification of %s: %w", username, repository.ErrNotFound)
	}
	delete(r.s.verifications, username)
	return nil
}

func (r *verificationRepository) DeleteExpiredUnverified(_ context.Context, now int64) (int64, error) {
	if err := r.s.write(); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var removed int64
	for username, v := range r.s.verifications {
		if !v.Verified && v.Expired(now) {
			delete(r.s.verifications, username)
			removed++
		}
	}
	return removed, nil
}

type resetTokenRepository struct{ s *Store }

func (r *resetTokenRepository) Upsert(_ context.Context, token *domain.ResetToken) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	stored := *token
	stored.Updated = 0
	stored.Revoked = false
	r.s.resetTokens[token.Token] = stored
	return nil
}

func (r *resetTokenRepository) Get(_ context.Context, token string) (*domain.ResetToken, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	rt, ok := r.s.resetTokens[token]
	if !ok {
		return nil, fmt.Errorf("reset token: %w", repository.ErrNotFound)
	}
	return &rt, nil
}

func (r *resetTokenRepository) Delete(_ context.Context, token string) error {
	if err := r.s.write(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.resetTokens[token]; !ok {
		return fmt.Errorf("reset token: %w", repository.ErrNotFound)
	}
	delete(r.s.resetTokens, token)
	return nil
}

func (r *resetTokenRepository) DeleteExpired(_ context.Context, now int64) (int64, error) {
	if err := r.s.write(); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var removed int64
	for token, rt := range r.s.resetTokens {
		if rt.Expired(now) {
			delete(r.s.resetTokens, token)
			removed++
		}
	}
	return removed, nil
}

func stripUser(user domain.User) domain.User {
	user.Updated = 0
	return user
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
