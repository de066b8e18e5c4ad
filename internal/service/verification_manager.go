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

// DefaultVerificationTTL is how long a verification link stays valid
const DefaultVerificationTTL = 24 * time.Hour

// VerificationManager issues and checks email verification tokens, one per user
type VerificationManager struct {
	hybrid
	tokens repository.VerificationRepository
	local  *secondary.VerificationStore
	mailer Mailer
	ttl    time.Duration
}

// NewVerificationManager creates a verification manager. A zero ttl uses the default.
func NewVerificationManager(b Backend, mailer Mailer, ttl time.Duration) *VerificationManager {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &VerificationManager{
		hybrid: newHybrid(b, "verification"),
		tokens: b.Primary.Verification,
		local:  b.Secondary.Verifications,
		mailer: mailer,
		ttl:    ttl,
	}
}

// Generate issues a new unverified token for username, replacing any previous one.
// The email is sent only while the primary store is reachable; offline
// signups are verified once a token is resent online.
func (m *VerificationManager) Generate(ctx context.Context, username, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return "", err
	}

	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	record := domain.VerificationToken{
		Username: username,
		Email:    email,
		Token:    token,
		Expiry:   m.clock().Add(ttl).Unix(),
	}

	if m.online(ctx) {
		err := m.tokens.Upsert(ctx, &record)
		if err == nil {
			m.discardLocal(username)
			m.sendMail(ctx, m.mailer, username, func(ctx context.Context) error {
				return m.mailer.SendVerification(ctx, username, email, token)
			})
			return token, nil
		}
		m.absorb(err, "Primary store write failed, saving verification token locally", zap.String("username", username))
	}

	if _, err := m.local.Put(record); err != nil {
		return "", m.localFailure(err, "Failed to save verification token locally", zap.String("username", username))
	}
	m.logger.Info("Verification token saved locally, email deferred", zap.String("username", username))

	m.checkSync(ctx)
	return token, nil
}

// Resend issues a fresh token and resets the verified flag
func (m *VerificationManager) Resend(ctx context.Context, username, email string) (string, error) {
	return m.Generate(ctx, username, email, 0)
}

// Verify marks username verified when token matches its live record.
// A record that is already verified is accepted whatever token is presented.
func (m *VerificationManager) Verify(ctx context.Context, username, token string) bool {
	m.checkSync(ctx)

	unlock := m.local.Lock(username)
	defer unlock()

	now := m.now()

	if m.online(ctx) {
		record, err := m.tokens.Get(ctx, username)
		switch {
		case err == nil:
			return m.verifyPrimary(ctx, record, token, now)
		case !errors.Is(err, repository.ErrNotFound):
			m.absorb(err, "Primary store read failed, verifying locally", zap.String("username", username))
		}
	}

	record, ok := m.local.Get(username)
	if !ok {
		return false
	}
	if record.Verified {
		return true
	}
	if !utils.TokensEqual(record.Token, token) || record.Expired(now) {
		return false
	}

	if _, err := m.local.MarkVerified(username); err != nil {
		m.logger.Error("Failed to mark verified locally", zap.String("username", username), zap.Error(err))
		return false
	}
	m.logger.Info("User verified locally", zap.String("username", username))

	m.checkSync(ctx)
	return true
}

func (m *VerificationManager) verifyPrimary(ctx context.Context, record *domain.VerificationToken, token string, now int64) bool {
	if record.Verified {
		return true
	}
	if !utils.TokensEqual(record.Token, token) || record.Expired(now) {
		return false
	}

	err := m.tokens.MarkVerified(ctx, record.Username)
	if err != nil {
		m.absorb(err, "Primary store verify failed, verifying locally", zap.String("username", record.Username))

		record.Verified = true
		if _, err := m.local.Put(*record); err != nil {
			m.logger.Error("Failed to mark verified locally", zap.String("username", record.Username), zap.Error(err))
			return false
		}
		m.checkSync(ctx)
		return true
	}

	m.discardLocal(record.Username)
	m.logger.Info("User verified", zap.String("username", record.Username))
	m.sendMail(ctx, m.mailer, record.Username, func(ctx context.Context) error {
		return m.mailer.SendConfirmation(ctx, record.Username, record.Email)
	})
	return true
}

// IsVerified reports whether username has completed verification
func (m *VerificationManager) IsVerified(ctx context.Context, username string) bool {
	record, ok := m.Info(ctx, username)
	return ok && record.Verified
}

// Info returns the verification record of username
func (m *VerificationManager) Info(ctx context.Context, username string) (*domain.VerificationToken, bool) {
	return lookup(ctx, &m.hybrid, username,
		func(ctx context.Context) (*domain.VerificationToken, error) { return m.tokens.Get(ctx, username) },
		func() (domain.VerificationToken, bool) { return m.local.Get(username) },
	)
}

// Delete removes the verification record of username from both stores
func (m *VerificationManager) Delete(ctx context.Context, username string) {
	if m.online(ctx) {
		if err := m.tokens.Delete(ctx, username); err != nil && !errors.Is(err, repository.ErrNotFound) {
			m.absorb(err, "Primary store verification delete failed", zap.String("username", username))
		}
	}
	m.discardLocal(username)
}

// CleanupExpired deletes expired unverified records from both stores
func (m *VerificationManager) CleanupExpired(ctx context.Context) int {
	now := m.now()
	total := 0

	if m.online(ctx) {
		n, err := m.tokens.DeleteExpiredUnverified(ctx, now)
		if err != nil {
			m.absorb(err, "Primary store verification cleanup failed")
		}
		total += int(n)
	}

	n, err := m.local.DeleteExpiredUnverified(now)
	if err != nil {
		m.logger.Error("Local verification cleanup failed", zap.Error(err))
	}
	total += n

	if total > 0 {
		m.logger.Info("Expired verification tokens removed", zap.Int("count", total))
	}
	return total
}

func (m *VerificationManager) discardLocal(username string) {
	if _, err := m.local.Delete(username); err != nil {
		m.logger.Warn("Failed to drop superseded local verification token", zap.String("username", username), zap.Error(err))
	}
}
