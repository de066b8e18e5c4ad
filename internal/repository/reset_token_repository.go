package repository

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
)

// resetTokenRepository implements ResetTokenRepository interface
type resetTokenRepository struct {
	pgStore
}

// NewResetTokenRepository creates a new reset token repository
func NewResetTokenRepository(db *database.Postgres) ResetTokenRepository {
	return &resetTokenRepository{pgStore{db: db}}
}

// Upsert stores a reset request keyed by its token
func (r *resetTokenRepository) Upsert(ctx context.Context, token *domain.ResetToken) error {
	query := `
		INSERT INTO reset_tokens (token, username, email, expiry, created)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE
		SET username = EXCLUDED.username,
		    email = EXCLUDED.email,
		    expiry = EXCLUDED.expiry,
		    created = EXCLUDED.created,
		    updated_at = NOW()
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = db.ExecContext(ctx, query, token.Token, token.Username, token.Email, token.Expiry, token.Created)
	if err != nil {
		if dup := duplicate(err); dup != nil {
			return fmt.Errorf("reset token: %w", dup)
		}
		return r.wrap(err, "upsert reset token")
	}

	return nil
}

// Get retrieves a reset request by token without checking expiry
func (r *resetTokenRepository) Get(ctx context.Context, token string) (*domain.ResetToken, error) {
	query := `
		SELECT token, username, email, expiry, created
		FROM reset_tokens
		WHERE token = $1
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rt := &domain.ResetToken{}
	err = db.QueryRowContext(ctx, query, token).Scan(
		&rt.Token,
		&rt.Username,
		&rt.Email,
		&rt.Expiry,
		&rt.Created,
	)
	if err != nil {
		return nil, r.wrap(err, "get reset token")
	}

	return rt, nil
}

// Delete removes a reset request
func (r *resetTokenRepository) Delete(ctx context.Context, token string) error {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE token = $1`, token)
	if err != nil {
		return r.wrap(err, "delete reset token")
	}

	return affected(result, "delete reset token")
}

// DeleteExpired removes every reset request expired at now
func (r *resetTokenRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE expiry <= $1`, now)
	if err != nil {
		return 0, r.wrap(err, "delete expired reset tokens")
	}

	return result.RowsAffected()
}
