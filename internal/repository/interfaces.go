package repository

import (
	"context"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
)

// Prober reports whether the primary store can currently be reached
type Prober interface {
	IsAvailable(ctx context.Context) bool
}

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Upsert(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByUsernameFold(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]*domain.User, error)
}

// SessionRepository defines methods for session operations
type SessionRepository interface {
	Upsert(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, username string) (*domain.Session, error)
	// Touch moves the expiry of a live session matching username and token to newExpiry
	// in a single statement and returns ErrNotFound when no such session exists at now.
	Touch(ctx context.Context, username, token string, now, newExpiry int64) (*domain.Session, error)
	// Delete removes the session of username; a non-empty token must match
	Delete(ctx context.Context, username, token string) error
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}

// VerificationRepository defines methods for email verification operations
type VerificationRepository interface {
	Upsert(ctx context.Context, token *domain.VerificationToken) error
	Get(ctx context.Context, username string) (*domain.VerificationToken, error)
	MarkVerified(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
	DeleteExpiredUnverified(ctx context.Context, now int64) (int64, error)
}

// ResetTokenRepository defines methods for password reset token operations
type ResetTokenRepository interface {
	Upsert(ctx context.Context, token *domain.ResetToken) error
	Get(ctx context.Context, token string) (*domain.ResetToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}
