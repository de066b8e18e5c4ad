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

// DefaultResetTTL is how long a password reset link stays valid
const DefaultResetTTL = time.Hour

// ResetManager issues single-use password reset tokens
type ResetManager struct {
	hybrid
	tokens repository.ResetTokenRepository
	local  *secondary.ResetTokenStore
	users  *UserManager
	mailer Mailer
	ttl    time.Duration
}

// NewResetManager creates a reset manager. A zero ttl uses the default.
func NewResetManager(b Backend, users *UserManager, mailer Mailer, ttl time.Duration) *ResetManager {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetManager{
		hybrid: newHybrid(b, "reset"),
		tokens: b.Primary.ResetToken,
		local:  b.Secondary.ResetTokens,
		users:  users,
		mailer: mailer,
		ttl:    ttl,
	}
}

// Generate issues a reset token for the account matching identifier, tried
// first as a username and then as an email. The email is sent only while the
// primary store is reachable.
func (m *ResetManager) Generate(ctx context.Context, identifier string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}

	user, ok := m.users.Get(ctx, identifier)
	if !ok {
		user, ok = m.users.GetByEmail(ctx, utils.SanitizeEmail(identifier))
	}
	if !ok {
		return "", ErrUnknownAccount
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return "", err
	}

	now := m.clock()
	rt := domain.ResetToken{
		Token:    token,
		Username: user.Username,
		Email:    user.Email,
		Expiry:   now.Add(ttl).Unix(),
		Created:  now.Unix(),
	}
	fields := []zap.Field{zap.String("username", user.Username), zap.String("token", utils.ShortToken(token))}

	m.checkSync(ctx)

	if m.online(ctx) {
		err := m.tokens.Upsert(ctx, &rt)
		if err == nil {
			m.logger.Info("Reset token issued", fields...)
			m.sendMail(ctx, m.mailer, user.Username, func(ctx context.Context) error {
				return m.mailer.SendReset(ctx, user.Username, user.Email, token)
			})
			return token, nil
		}
		m.absorb(err, "Primary store write failed, saving reset token locally", fields...)
	}

	if _, err := m.local.Put(rt); err != nil {
		return "", m.localFailure(err, "Failed to save reset token locally", fields...)
	}
	m.logger.Info("Reset token saved locally, email deferred", fields...)

	m.checkSync(ctx)
	return token, nil
}

// Validate returns the live reset request stored under token. An expired
// request is deleted; nothing else is changed.
func (m *ResetManager) Validate(ctx context.Context, token string) (*domain.ResetToken, bool) {
	if token == "" {
		return nil, false
	}

	now := m.now()
	if local, ok := m.local.Get(token); ok && local.Revoked {
		return nil, false
	}

	if m.online(ctx) {
		rt, err := m.tokens.Get(ctx, token)
		switch {
		case err == nil:
			if rt.Expired(now) {
				m.dropExpired(ctx, token)
				return nil, false
			}
			return rt, true
		case !errors.Is(err, repository.ErrNotFound):
			m.absorb(err, "Primary store read failed, checking reset token locally", zap.String("token", utils.ShortToken(token)))
		}
	}

	rt, ok, err := m.local.Lookup(token, now)
	if err != nil {
		m.logger.Error("Failed to drop expired local reset token", zap.String("token", utils.ShortToken(token)), zap.Error(err))
	}
	if !ok {
		return nil, false
	}
	return &rt, true
}

func (m *ResetManager) dropExpired(ctx context.Context, token string) {
	if err := m.tokens.Delete(ctx, token); err != nil && !errors.Is(err, repository.ErrNotFound) {
		m.absorb(err, "Failed to delete expired reset token", zap.String("token", utils.ShortToken(token)))
	}
	if _, err := m.local.Delete(token); err != nil {
		m.logger.Error("Failed to delete expired local reset token", zap.String("token", utils.ShortToken(token)), zap.Error(err))
	}
}

// Reset sets a new password for the account of token, consumes the token and
// returns the username. The token is kept when the password could not be
// stored, so the user can retry.
func (m *ResetManager) Reset(ctx context.Context, token, password string) (string, error) {
	unlock := m.local.Lock(token)
	defer unlock()

	rt, ok := m.Validate(ctx, token)
	if !ok {
		return "", ErrInvalidToken
	}

	if err := m.users.UpdatePassword(ctx, rt.Username, password); err != nil {
		m.logger.Warn("Password reset failed, token kept",
			zap.String("username", rt.Username),
			zap.Error(err),
		)
		return "", err
	}

	m.consume(ctx, *rt)
	m.logger.Info("Password reset", zap.String("username", rt.Username))
	return rt.Username, nil
}

// consume deletes a used token from both stores. While the primary store is
// unreachable a revocation marker replaces the local copy and is pushed later.
func (m *ResetManager) consume(ctx context.Context, rt domain.ResetToken) {
	fields := []zap.Field{zap.String("token", utils.ShortToken(rt.Token))}

	if m.online(ctx) {
		err := m.tokens.Delete(ctx, rt.Token)
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			if _, err := m.local.Delete(rt.Token); err != nil {
				m.logger.Error("Failed to delete used local reset token", append(fields, zap.Error(err))...)
			}
			return
		}
		m.absorb(err, "Primary store delete failed, revoking reset token locally", fields...)
	}

	if _, err := m.local.Revoke(rt); err != nil {
		m.logger.Error("Failed to revoke used reset token", append(fields, zap.Error(err))...)
		return
	}
	m.checkSync(ctx)
}

// Info returns the reset request stored under token without checking expiry
func (m *ResetManager) Info(ctx context.Context, token string) (*domain.ResetToken, bool) {
	return lookup(ctx, &m.hybrid, utils.ShortToken(token),
		func(ctx context.Context) (*domain.ResetToken, error) { return m.tokens.Get(ctx, token) },
		func() (domain.ResetToken, bool) { return m.local.Get(token) },
	)
}

// CleanupExpired deletes expired reset requests from both stores
func (m *ResetManager) CleanupExpired(ctx context.Context) int {
	now := m.now()
	total := 0

	if m.online(ctx) {
		n, err := m.tokens.DeleteExpired(ctx, now)
		if err != nil {
			m.absorb(err, "Primary store reset token cleanup failed")
		}
		total += int(n)
	}

	n, err := m.local.DeleteExpired(now)
	if err != nil {
		m.logger.Error("Local reset token cleanup failed", zap.Error(err))
	}
	total += n

	if total > 0 {
		m.logger.Info("Expired reset tokens removed", zap.Int("count", total))
	}
	return total
}
