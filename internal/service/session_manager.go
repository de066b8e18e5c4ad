package service

import (
	"context"
	"errors"
	"time"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
	"github.com/prperemyshlev/hybrid-auth/internal/utils"
	"go.uber.org/zap"
)

// Session lifetimes
const (
	DefaultSessionDuration = time.Hour
	DefaultSessionRenewal  = time.Hour
)

// SessionManager keeps one sliding session per user
type SessionManager struct {
	hybrid
	sessions repository.SessionRepository
	local    *secondary.SessionStore
	duration time.Duration
	renewal  time.Duration
}

// NewSessionManager creates a session manager. Zero durations use the defaults.
func NewSessionManager(b Backend, duration, renewal time.Duration) *SessionManager {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	if renewal <= 0 {
		renewal = DefaultSessionRenewal
	}
	return &SessionManager{
		hybrid:   newHybrid(b, "sessions"),
		sessions: b.Primary.Session,
		local:    b.Secondary.Sessions,
		duration: duration,
		renewal:  renewal,
	}
}

// Create starts a new session for username, replacing any previous one
func (m *SessionManager) Create(ctx context.Context, username string) (*domain.Session, error) {
	token, err := utils.GenerateToken()
	if err != nil {
		return nil, err
	}

	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	session := domain.Session{
		Username: username,
		Token:    token,
		Expiry:   m.clock().Add(m.duration).Unix(),
	}

	if m.online(ctx) {
		err := m.sessions.Upsert(ctx, &session)
		if err == nil {
			m.discardLocal(username)
			return &session, nil
		}
		m.absorb(err, "Primary store write failed, saving session locally", zap.String("username", username))
	}

	if _, err := m.local.Put(session); err != nil {
		return nil, m.localFailure(err, "Failed to save session locally", zap.String("username", username))
	}
	m.logger.Info("Session saved locally", zap.String("username", username))

	m.checkSync(ctx)
	return &session, nil
}

// Validate checks token against the session of username and, when it is live,
// extends its expiry by the renewal window in the store that answered.
// An expired session is deleted. A session held by the primary store is never
// answered from the local store.
func (m *SessionManager) Validate(ctx context.Context, username, token string) (*domain.Session, bool) {
	if username == "" || token == "" {
		return nil, false
	}

	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	now := m.now()
	newExpiry := m.clock().Add(m.renewal).Unix()

	if m.online(ctx) {
		session, handled, ok := m.validatePrimary(ctx, username, token, now, newExpiry)
		if handled {
			return session, ok
		}
	}

	session, result, err := m.local.Touch(username, token, now, newExpiry)
	if err != nil {
		m.logger.Error("Failed to renew local session", zap.String("username", username), zap.Error(err))
		return nil, false
	}

	switch result {
	case secondary.TouchRenewed:
		return &session, true
	case secondary.TouchExpired:
		m.logger.Info("Expired local session removed", zap.String("username", username))
	}
	return nil, false
}

// validatePrimary reports handled=false when the answer has to come from the local store
func (m *SessionManager) validatePrimary(ctx context.Context, username, token string, now, newExpiry int64) (*domain.Session, bool, bool) {
	if m.revokedLocally(username, token) {
		return nil, true, false
	}

	session, err := m.sessions.Touch(ctx, username, token, now, newExpiry)
	if err == nil {
		return session, true, true
	}
	if !errors.Is(err, repository.ErrNotFound) {
		m.absorb(err, "Primary store session renewal failed, using local store", zap.String("username", username))
		return nil, false, false
	}

	existing, err := m.sessions.Get(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, false, false
	case err != nil:
		m.absorb(err, "Primary store session read failed, using local store", zap.String("username", username))
		return nil, false, false
	}

	if existing.Expired(now) {
		if err := m.sessions.Delete(ctx, username, existing.Token); err != nil && !errors.Is(err, repository.ErrNotFound) {
			m.absorb(err, "Failed to delete expired session", zap.String("username", username))
		}
		m.discardLocal(username)
	}
	return nil, true, false
}

// revokedLocally reports whether a logout made while offline still waits to be pushed
func (m *SessionManager) revokedLocally(username, token string) bool {
	s, ok := m.local.Get(username)
	return ok && s.Revoked && (s.Token == "" || s.Token == token)
}

// End deletes the session of username from both stores. A non-empty token must match.
// When the primary store cannot be reached the local store keeps a revocation
// marker that is pushed later.
func (m *SessionManager) End(ctx context.Context, username, token string) bool {
	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	if !m.online(ctx) {
		return m.revoke(ctx, username, token)
	}

	err := m.sessions.Delete(ctx, username, token)
	switch {
	case err == nil:
		m.discardLocal(username)
		return true
	case !errors.Is(err, repository.ErrNotFound):
		m.absorb(err, "Primary store session delete failed, revoking locally", zap.String("username", username))
		return m.revoke(ctx, username, token)
	}

	// a local session may not have been pushed yet
	removed, err := m.local.Delete(username, token)
	if err != nil {
		m.logger.Error("Failed to delete local session", zap.String("username", username), zap.Error(err))
		return false
	}
	return removed
}

// revoke records an offline logout. The primary store may still hold the
// session, so the marker is kept until any session could have expired.
// A newer local session under another token already supersedes the primary one.
func (m *SessionManager) revoke(ctx context.Context, username, token string) bool {
	if current, ok := m.local.Get(username); ok && current.Live(m.now()) && token != "" && current.Token != token {
		return false
	}

	expiry := m.clock().Add(max(m.duration, m.renewal)).Unix()
	if _, err := m.local.Revoke(username, token, expiry); err != nil {
		m.logger.Error("Failed to revoke session locally", zap.String("username", username), zap.Error(err))
		return false
	}
	m.logger.Info("Session revoked locally", zap.String("username", username))

	m.checkSync(ctx)
	return true
}

func (m *SessionManager) discardLocal(username string) {
	if _, err := m.local.Delete(username, ""); err != nil {
		m.logger.Warn("Failed to drop superseded local session", zap.String("username", username), zap.Error(err))
	}
}

// Info returns the live session of username without renewing it
func (m *SessionManager) Info(ctx context.Context, username string) (*domain.Session, bool) {
	now := m.now()
	session, ok := lookup(ctx, &m.hybrid, username,
		func(ctx context.Context) (*domain.Session, error) { return m.sessions.Get(ctx, username) },
		func() (domain.Session, bool) { return m.local.Get(username) },
	)
	if !ok || !session.Live(now) {
		return nil, false
	}
	return session, true
}

// CleanupExpired deletes expired sessions from both stores and returns how many were removed
func (m *SessionManager) CleanupExpired(ctx context.Context) int {
	now := m.now()
	total := 0

	if m.online(ctx) {
		n, err := m.sessions.DeleteExpired(ctx, now)
		if err != nil {
			m.absorb(err, "Primary store session cleanup failed")
		}
		total += int(n)
	}

	n, err := m.local.DeleteExpired(now)
	if err != nil {
		m.logger.Error("Local session cleanup failed", zap.Error(err))
	}
	total += n

	if total > 0 {
		m.logger.Info("Expired sessions removed", zap.Int("count", total))
	}
	return total
}
