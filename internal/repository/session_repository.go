package repository

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
)

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	pgStore
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{pgStore{db: db}}
}

// Upsert stores the session, replacing the previous session of the same user
func (r *sessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (username, token, expiry)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET token = EXCLUDED.token,
		    expiry = EXCLUDED.expiry,
		    updated_at = NOW()
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := db.ExecContext(ctx, query, session.Username, session.Token, session.Expiry); err != nil {
		if dup := duplicate(err); dup != nil {
			return fmt.Errorf("session of %s: %w", session.Username, dup)
		}
		return r.wrap(err, "upsert session")
	}

	return nil
}

// Get retrieves the session of a user, expired or not
func (r *sessionRepository) Get(ctx context.Context, username string) (*domain.Session, error) {
	query := `SELECT username, token, expiry FROM sessions WHERE username = $1`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	session := &domain.Session{}
	err = db.QueryRowContext(ctx, query, username).Scan(&session.Username, &session.Token, &session.Expiry)
	if err != nil {
		return nil, r.wrap(err, "get session")
	}

	return session, nil
}

// Touch renews a live session in one statement
func (r *sessionRepository) Touch(ctx context.Context, username, token string, now, newExpiry int64) (*domain.Session, error) {
	query := `
		UPDATE sessions
		SET expiry = $4, updated_at = NOW()
		WHERE username = $1 AND token = $2 AND expiry > $3
		RETURNING username, token, expiry
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	session := &domain.Session{}
	err = db.QueryRowContext(ctx, query, username, token, now, newExpiry).Scan(
		&session.Username,
		&session.Token,
		&session.Expiry,
	)
	if err != nil {
		return nil, r.wrap(err, "renew session")
	}

	return session, nil
}

// Delete removes the session of a user
func (r *sessionRepository) Delete(ctx context.Context, username, token string) error {
	query := `DELETE FROM sessions WHERE username = $1 AND ($2 = '' OR token = $2)`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, query, username, token)
	if err != nil {
		return r.wrap(err, "delete session")
	}

	return affected(result, "delete session of "+username)
}

// DeleteExpired removes every session expired at now
func (r *sessionRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expiry <= $1`, now)
	if err != nil {
		return 0, r.wrap(err, "delete expired sessions")
	}

	return result.RowsAffected()
}
