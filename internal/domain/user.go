package domain

// User represents an account in the system
type User struct {
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	// Updated is the local write revision, zero for records read from the primary store
	Updated int64 `json:"-" db:"-"`
}

// SyncKey returns the key the user is stored under
func (u User) SyncKey() string { return u.Username }

// SyncRevision returns the local write revision
func (u User) SyncRevision() int64 { return u.Updated }

// SyncExpiry returns zero: users never expire
func (u User) SyncExpiry() int64 { return 0 }
