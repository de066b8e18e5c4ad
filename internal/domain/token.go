package domain

// Session represents the single active login session of a user
type Session struct {
	Username string `json:"username" db:"username"`
	Token    string `json:"-" db:"token"`
	Expiry   int64  `json:"expiry" db:"expiry"`
	// Revoked marks a local logout that still has to be applied to the primary store
	Revoked bool  `json:"-" db:"-"`
	Updated int64 `json:"-" db:"-"`
}

// Expired reports whether the session is no longer valid at now
func (s Session) Expired(now int64) bool { return s.Expiry <= now }

// Live reports whether the session can be used at now
func (s Session) Live(now int64) bool { return !s.Revoked && !s.Expired(now) }

func (s Session) SyncKey() string     { return s.Username }
func (s Session) SyncRevision() int64 { return s.Updated }

// SyncExpiry returns zero for revoked sessions so the logout is always pushed
func (s Session) SyncExpiry() int64 {
	if s.Revoked {
		return 0
	}
	return s.Expiry
}

// VerificationToken represents a pending or completed email verification
type VerificationToken struct {
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Token    string `json:"-" db:"token"`
	Expiry   int64  `json:"expiry" db:"expiry"`
	Verified bool   `json:"verified" db:"verified"`
	Updated  int64  `json:"-" db:"-"`
}

// Expired reports whether the token can no longer be used at now
func (v VerificationToken) Expired(now int64) bool { return v.Expiry <= now }

func (v VerificationToken) SyncKey() string     { return v.Username }
func (v VerificationToken) SyncRevision() int64 { return v.Updated }

// SyncExpiry returns zero for verified records so they are always pushed
func (v VerificationToken) SyncExpiry() int64 {
	if v.Verified {
		return 0
	}
	return v.Expiry
}

// ResetToken represents an outstanding password reset request
type ResetToken struct {
	Token    string `json:"-" db:"token"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Expiry   int64  `json:"expiry" db:"expiry"`
	Created  int64  `json:"created" db:"created"`
	// Revoked marks a token consumed locally whose primary copy still has to be removed
	Revoked bool  `json:"-" db:"-"`
	Updated int64 `json:"-" db:"-"`
}

// Expired reports whether the token can no longer be used at now
func (r ResetToken) Expired(now int64) bool { return r.Expiry <= now }

// Live reports whether the token can be used at now
func (r ResetToken) Live(now int64) bool { return !r.Revoked && !r.Expired(now) }

func (r ResetToken) SyncKey() string     { return r.Token }
func (r ResetToken) SyncRevision() int64 { return r.Updated }

// SyncExpiry returns zero for revoked tokens so the removal is always pushed
func (r ResetToken) SyncExpiry() int64 {
	if r.Revoked {
		return 0
	}
	return r.Expiry
}
