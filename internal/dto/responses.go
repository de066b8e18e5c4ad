package dto

// SignupResponse represents a created account
type SignupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse carries the session token the client sends back as a Bearer token
type LoginResponse struct {
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Verified  bool   `json:"verified"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
	Verified  bool   `json:"verified"`
}

// VerificationStatusResponse reports whether an account is verified
type VerificationStatusResponse struct {
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

// TokenStatusResponse reports whether a reset token can be used
type TokenStatusResponse struct {
	Valid bool `json:"valid"`
}

// UserResponse represents a user in admin listings
type UserResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SyncResponse reports the outcome of a triggered reconciliation pass
type SyncResponse struct {
	Completed bool `json:"completed"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
