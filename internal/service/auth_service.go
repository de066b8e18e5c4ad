package service

import (
	"context"
	"strings"
	"time"

	"github.com/prperemyshlev/hybrid-auth/internal/utils"
	"go.uber.org/zap"
)

// authService implements AuthService interface
type authService struct {
	users         *UserManager
	sessions      *SessionManager
	verifications *VerificationManager
	resets        *ResetManager
	guard         LoginGuard
	logger        *zap.Logger
}

// NewAuthService creates a new auth service. guard may be nil to disable lockouts.
func NewAuthService(
	users *UserManager,
	sessions *SessionManager,
	verifications *VerificationManager,
	resets *ResetManager,
	guard LoginGuard,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		resets:        resets,
		guard:         guard,
		logger:        logger.Named("auth"),
	}
}

// Signup registers a new account and issues its verification token
func (s *authService) Signup(ctx context.Context, username, email, password string) (*SignupResult, error) {
	username = strings.TrimSpace(username)
	email = utils.SanitizeEmail(email)

	if !utils.ValidateUsername(username) {
		return nil, ErrInvalidUsername
	}
	if !utils.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !utils.ValidatePassword(password) {
		return nil, ErrWeakPassword
	}

	// Check if user already exists
	if s.users.Exists(ctx, username) {
		return nil, ErrUsernameTaken
	}
	if s.users.EmailExists(ctx, email) {
		return nil, ErrEmailTaken
	}

	if err := s.users.Create(ctx, username, email, password); err != nil {
		return nil, err
	}

	// The account exists even if the token could not be stored; the user can resend
	if _, err := s.verifications.Generate(ctx, username, email, 0); err != nil {
		s.logger.Warn("Failed to issue verification token", zap.String("username", username), zap.Error(err))
	}

	s.logger.Info("User signed up", zap.String("username", username))
	return &SignupResult{Username: username, Email: email}, nil
}

// Login checks the credentials ignoring username case and starts a session
func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)

	if remaining := s.lockedFor(ctx, username); remaining > 0 {
		return nil, &LockedOutError{Remaining: remaining}
	}

	canonical, ok := s.users.ValidateFold(ctx, username, password)
	if canonical == "" {
		return nil, ErrUserNotFound
	}
	if !ok {
		if lockout := s.failure(ctx, canonical); lockout > 0 {
			return nil, &LockedOutError{Remaining: lockout}
		}
		return nil, ErrWrongPassword
	}

	if s.guard != nil {
		if err := s.guard.Success(ctx, canonical); err != nil {
			s.logger.Warn("Failed to clear login attempts", zap.String("username", canonical), zap.Error(err))
		}
	}

	session, err := s.sessions.Create(ctx, canonical)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Username:  canonical,
		Token:     session.Token,
		ExpiresAt: session.Expiry,
		Verified:  s.verifications.IsVerified(ctx, canonical),
	}, nil
}

// lockedFor treats a failing guard as no lockout
func (s *authService) lockedFor(ctx context.Context, username string) time.Duration {
	if s.guard == nil {
		return 0
	}
	remaining, err := s.guard.Locked(ctx, username)
	if err != nil {
		s.logger.Warn("Failed to check login lockout", zap.String("username", username), zap.Error(err))
		return 0
	}
	return remaining
}

func (s *authService) failure(ctx context.Context, username string) time.Duration {
	if s.guard == nil {
		return 0
	}
	lockout, err := s.guard.Failure(ctx, username)
	if err != nil {
		s.logger.Warn("Failed to count failed login", zap.String("username", username), zap.Error(err))
		return 0
	}
	if lockout > 0 {
		s.logger.Warn("Account locked after failed logins",
			zap.String("username", username),
			zap.Duration("duration", lockout),
		)
	}
	return lockout
}

// Logout ends the session of username
func (s *authService) Logout(ctx context.Context, username, token string) bool {
	return s.sessions.End(ctx, username, token)
}

// Authenticate validates a session and slides its expiry forward
func (s *authService) Authenticate(ctx context.Context, username, token string) (*SessionInfo, bool) {
	session, ok := s.sessions.Validate(ctx, username, token)
	if !ok {
		return nil, false
	}
	return &SessionInfo{Username: session.Username, ExpiresAt: session.Expiry}, true
}

// ChangePassword replaces the password of a logged-in user after checking the current one
func (s *authService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if _, ok := s.users.Get(ctx, username); !ok {
		return ErrUserNotFound
	}
	if !s.users.Validate(ctx, username, currentPassword) {
		return ErrWrongPassword
	}
	if !utils.ValidatePassword(newPassword) {
		return ErrWeakPassword
	}
	return s.users.UpdatePassword(ctx, username, newPassword)
}

// Verify completes email verification
func (s *authService) Verify(ctx context.Context, username, token string) bool {
	return s.verifications.Verify(ctx, username, token)
}

// ResendVerification issues a new verification token for an unverified account
func (s *authService) ResendVerification(ctx context.Context, username string) error {
	user, ok := s.users.Get(ctx, username)
	if !ok {
		return ErrUserNotFound
	}
	if s.verifications.IsVerified(ctx, user.Username) {
		return ErrAlreadyVerified
	}
	_, err := s.verifications.Resend(ctx, user.Username, user.Email)
	return err
}

// IsVerified reports whether username completed verification
func (s *authService) IsVerified(ctx context.Context, username string) bool {
	return s.verifications.IsVerified(ctx, username)
}

// ForgotPassword issues a reset token for a username or email and mails it
func (s *authService) ForgotPassword(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ErrUnknownAccount
	}
	_, err := s.resets.Generate(ctx, identifier, 0)
	return err
}

// CheckResetToken reports whether a reset token can still be used
func (s *authService) CheckResetToken(ctx context.Context, token string) bool {
	_, ok := s.resets.Validate(ctx, token)
	return ok
}

// ResetPassword sets a new password with a reset token
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !utils.ValidatePassword(newPassword) {
		return ErrWeakPassword
	}
	username, err := s.resets.Reset(ctx, token, newPassword)
	if err != nil {
		return err
	}

	// The session opened with the old password is ended
	s.sessions.End(ctx, username, "")
	return nil
}
