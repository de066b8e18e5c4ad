package service

import (
	"context"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"go.uber.org/zap"
)

// CleanupReport counts the records removed by one expiry sweep
type CleanupReport struct {
	Sessions      int `json:"sessions"`
	Verifications int `json:"verifications"`
	ResetTokens   int `json:"reset_tokens"`
}

// Admin groups maintenance operations that are not part of the user flows
type Admin struct {
	users         *UserManager
	sessions      *SessionManager
	verifications *VerificationManager
	resets        *ResetManager
	logger        *zap.Logger
}

// NewAdmin creates the maintenance service
func NewAdmin(users *UserManager, sessions *SessionManager, verifications *VerificationManager, resets *ResetManager, logger *zap.Logger) *Admin {
	return &Admin{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		resets:        resets,
		logger:        logger.Named("admin"),
	}
}

// ListUsers returns every account
func (a *Admin) ListUsers(ctx context.Context) []domain.User {
	return a.users.List(ctx)
}

// DeleteUser removes an account together with its session and verification record
func (a *Admin) DeleteUser(ctx context.Context, username string) error {
	if err := a.users.Delete(ctx, username); err != nil {
		return err
	}
	a.sessions.End(ctx, username, "")
	a.verifications.Delete(ctx, username)

	a.logger.Info("User deleted", zap.String("username", username))
	return nil
}

// Cleanup runs the expiry sweeps of every token kind
func (a *Admin) Cleanup(ctx context.Context) CleanupReport {
	return CleanupReport{
		Sessions:      a.sessions.CleanupExpired(ctx),
		Verifications: a.verifications.CleanupExpired(ctx),
		ResetTokens:   a.resets.CleanupExpired(ctx),
	}
}
