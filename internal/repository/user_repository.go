package repository

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
)

const userColumns = `username, email, password_hash`

// userRepository implements UserRepository interface
type userRepository struct {
	pgStore
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{pgStore{db: db}}
}

// Create inserts a new user and fails on an existing username or email
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := db.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash); err != nil {
		if dup := duplicate(err); dup != nil {
			return fmt.Errorf("user %s: %w", user.Username, dup)
		}
		return r.wrap(err, "create user")
	}

	return nil
}

// Upsert inserts the user or replaces the email and password of an existing one
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email,
		    password_hash = EXCLUDED.password_hash,
		    updated_at = NOW()
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := db.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash); err != nil {
		if dup := duplicate(err); dup != nil {
			return fmt.Errorf("user %s: %w", user.Username, dup)
		}
		return r.wrap(err, "upsert user")
	}

	return nil
}

// GetByUsername retrieves a user by exact username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	return r.getOne(ctx, "get user by username", query, username)
}

// GetByUsernameFold retrieves a user by username ignoring case.
// An exact match is preferred, then the first match in byte order.
func (r *userRepository) GetByUsernameFold(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) = LOWER($1)
		ORDER BY (username = $1) DESC, username COLLATE "C"
		LIMIT 1
	`

	return r.getOne(ctx, "get user by folded username", query, username)
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return r.getOne(ctx, "get user by email", query, email)
}

func (r *userRepository) getOne(ctx context.Context, action, query string, arg string) (*domain.User, error) {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	user := &domain.User{}
	err = db.QueryRowContext(ctx, query, arg).Scan(
		&user.Username,
		&user.Email,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, r.wrap(err, action)
	}

	return user, nil
}

// UpdatePassword replaces the password digest of a user
func (r *userRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE username = $1
	`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return r.wrap(err, "update password")
	}

	return affected(result, "update password of "+username)
}

// Delete removes a user
func (r *userRepository) Delete(ctx context.Context, username string) error {
	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return r.wrap(err, "delete user")
	}

	return affected(result, "delete user "+username)
}

// List returns every user ordered by username
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username COLLATE "C"`

	db, ctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, r.wrap(err, "list users")
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.Username, &user.Email, &user.PasswordHash); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, r.wrap(err, "iterate users")
	}

	return users, nil
}
