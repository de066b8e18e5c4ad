package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
)

const uniqueViolation = "23505"

// Repositories holds all primary store repositories
type Repositories struct {
	User         UserRepository
	Session      SessionRepository
	Verification VerificationRepository
	ResetToken   ResetTokenRepository
}

// NewRepositories creates all PostgreSQL repositories over db
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Session:      NewSessionRepository(db),
		Verification: NewVerificationRepository(db),
		ResetToken:   NewResetTokenRepository(db),
	}
}

// pgStore is embedded by every PostgreSQL repository
type pgStore struct {
	db *database.Postgres
}

// conn returns the live handle and ctx bounded by the query timeout
func (s pgStore) conn(ctx context.Context) (*sql.DB, context.Context, context.CancelFunc, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, ctx, func() {}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ctx, cancel := s.db.WithQueryTimeout(ctx)
	return db, ctx, cancel, nil
}

// wrap annotates a driver error; connection failures mark the store unavailable
func (s pgStore) wrap(err error, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", action, ErrNotFound)
	}

	if database.IsConnectionError(err) {
		s.db.MarkUnavailable(err)
		return fmt.Errorf("failed to %s: %w: %v", action, ErrUnavailable, err)
	}

	return fmt.Errorf("failed to %s: %w", action, err)
}

// duplicate maps a unique violation to its sentinel, or returns nil
func duplicate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case "users_username_key", "users_username_lower_key":
		return ErrDuplicateUsername
	case "users_email_key":
		return ErrDuplicateEmail
	default:
		return ErrDuplicateToken
	}
}

func affected(result sql.Result, action string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", action, ErrNotFound)
	}

	return nil
}
