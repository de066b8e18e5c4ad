package service

// SignupResult describes a newly created account
type SignupResult struct {
	Username string
	Email    string
}

// LoginResult carries the session issued at login
type LoginResult struct {
	Username  string
	Token     string
	ExpiresAt int64
	Verified  bool
}

// SessionInfo describes an authenticated session
type SessionInfo struct {
	Username  string
	ExpiresAt int64
}
