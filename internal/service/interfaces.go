package service

import (
	"context"
)

// Mailer sends account emails
type Mailer interface {
	SendVerification(ctx context.Context, username, email, token string) error
	SendReset(ctx context.Context, username, email, token string) error
	SendConfirmation(ctx context.Context, username, email string) error
}

// PasswordHasher produces and checks one-way password digests
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// Syncer pushes pending local writes to the primary store when it becomes reachable
type Syncer interface {
	OpportunisticCheck(ctx context.Context) bool
}

// AuthService defines the account flows offered to the UI
type AuthService interface {
	Signup(ctx context.Context, username, email, password string) (*SignupResult, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, username, token string) bool
	Authenticate(ctx context.Context, username, token string) (*SessionInfo, bool)
	ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error
	Verify(ctx context.Context, username, token string) bool
	ResendVerification(ctx context.Context, username string) error
	IsVerified(ctx context.Context, username string) bool
	ForgotPassword(ctx context.Context, identifier string) error
	CheckResetToken(ctx context.Context, token string) bool
	ResetPassword(ctx context.Context, token, newPassword string) error
}
