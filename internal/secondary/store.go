package secondary

import (
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// File names of the documents inside the storage directory
const (
	UsersFile         = "users.json"
	SessionsFile      = "sessions.json"
	VerificationsFile = "verification_tokens.json"
	ResetTokensFile   = "reset_tokens.json"
)

// Stores holds the JSON-backed fallback store of every entity
type Stores struct {
	Users         *UserStore
	Sessions      *SessionStore
	Verifications *VerificationStore
	ResetTokens   *ResetTokenStore
}

// NewStores creates all stores under dir. clock stamps write revisions.
func NewStores(dir string, logger *zap.Logger, clock func() time.Time) *Stores {
	if clock == nil {
		clock = time.Now
	}
	logger = logger.Named("secondary")
	rev := &revisions{clock: clock}

	return &Stores{
		Users:         &UserStore{KeyLocks: NewKeyLocks(), doc: NewDocument[userRecord](filepath.Join(dir, UsersFile), logger), rev: rev},
		Sessions:      &SessionStore{KeyLocks: NewKeyLocks(), doc: NewDocument[sessionRecord](filepath.Join(dir, SessionsFile), logger), rev: rev},
		Verifications: &VerificationStore{KeyLocks: NewKeyLocks(), doc: NewDocument[verificationRecord](filepath.Join(dir, VerificationsFile), logger), rev: rev},
		ResetTokens:   &ResetTokenStore{KeyLocks: NewKeyLocks(), doc: NewDocument[resetTokenRecord](filepath.Join(dir, ResetTokensFile), logger), rev: rev},
	}
}

// revisions issues write revisions in Unix nanoseconds. Every revision is newer
// than the previous one of the same key and than any other issued by this process,
// so a key that is deleted and written again never reuses a revision.
type revisions struct {
	clock func() time.Time

	mu   sync.Mutex
	last int64
}

func (r *revisions) next(prev int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = max(r.clock().UnixNano(), prev+1, r.last+1)
	return r.last
}
