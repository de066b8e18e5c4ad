package repository

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
)

// verificationRepository implements VerificationRepository interface
type verificationRepository struct {
	pgStore
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *database.Postgres) VerificationRepository {
	return &verificationRepository{pgStore{db: db}}
}

// Upsert stores the verification record of a user, replacing the previous one
func (r *verificationRepository) Upsert(ctx context.Context, token *domain.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (username, email, token, expiry, verified)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email,
		    token = EXCLUDED.token,
		    expiry = EXCLUDED.expiry,
		    verified = EXCLUDED.verified,
		    updated_at = NOW()
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = db.ExecContext(ctx, query, token.Username, token.Email, token.Token, token.Expiry, token.Verified)
	if err != nil {
		if dup := duplicate(err); dup != nil {
			return fmt.Errorf("verification of %s: %w", token.Username, dup)
		}
		return r.wrap(err, "upsert verification token")
	}

	return nil
}

// Get retrieves the verification record of a user
func (r *verificationRepository) Get(ctx context.Context, username string) (*domain.VerificationToken, error) {
	query := `
		SELECT username, email, token, expiry, verified
		FROM verification_tokens
		WHERE username = $1
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	v := &domain.VerificationToken{}
	err = db.QueryRowContext(ctx, query, username).Scan(
		&v.Username,
		&v.Email,
		&v.Token,
		&v.Expiry,
		&v.Verified,
	)
	if err != nil {
		return nil, r.wrap(err, "get verification token")
	}

	return v, nil
}

// MarkVerified sets the verified flag of a user's record
func (r *verificationRepository) MarkVerified(ctx context.Context, username string) error {
	query := `
		UPDATE verification_tokens
		SET verified = TRUE, updated_at = NOW()
		WHERE username = $1
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, query, username)
	if err != nil {
		return r.wrap(err, "mark verified")
	}

	return affected(result, "mark "+username+" verified")
}

// Delete removes the verification record of a user
func (r *verificationRepository) Delete(ctx context.Context, username string) error {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE username = $1`, username)
	if err != nil {
		return r.wrap(err, "delete verification token")
	}

	return affected(result, "delete verification of "+username)
}

// DeleteExpiredUnverified removes unverified records expired at now
func (r *verificationRepository) DeleteExpiredUnverified(ctx context.Context, now int64) (int64, error) {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE verified = FALSE AND expiry <= $1`, now)
	if err != nil {
		return 0, r.wrap(err, "delete expired verification tokens")
	}

	return result.RowsAffected()
}
