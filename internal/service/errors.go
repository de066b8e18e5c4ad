package service

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned to the HTTP layer. Primary store failures never surface here:
// they are absorbed and served from the local store instead.
var (
	// ErrStorageUnavailable is returned when neither store could persist a write
	ErrStorageUnavailable = errors.New("storage unavailable, try again")

	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already registered")
	ErrWeakPassword    = errors.New("password is too weak")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidUsername = errors.New("username must be 3-30 letters, digits, dots or underscores and cannot start or end with . or _")

	// ErrUnknownAccount is returned when a reset request matches no username or email
	ErrUnknownAccount = errors.New("no account matches this username or email")

	// ErrInvalidToken is returned for unknown, expired or already used tokens
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrUserNotFound  = errors.New("account does not exist")
	ErrWrongPassword = errors.New("wrong password")

	ErrAlreadyVerified = errors.New("account is already verified")
)

// LockedOutError is returned while an account is locked after repeated failed logins
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("too many failed logins, try again in %s", e.Remaining.Round(time.Second))
}
