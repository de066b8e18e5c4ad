package secondary

import (
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
)

type sessionRecord struct {
	Token   string `json:"token"`
	Expiry  int64  `json:"expiry"`
	Revoked bool   `json:"revoked,omitempty"`
	Updated int64  `json:"updated,omitempty"`
}

func (r sessionRecord) session(username string) domain.Session {
	return domain.Session{
		Username: username,
		Token:    r.Token,
		Expiry:   r.Expiry,
		Revoked:  r.Revoked,
		Updated:  r.Updated,
	}
}

// TouchResult is the outcome of a sliding session renewal
type TouchResult int

const (
	// TouchMissing means no usable session is stored for the username
	TouchMissing TouchResult = iota
	// TouchMismatch means a live session exists under a different token
	TouchMismatch
	// TouchExpired means the session had expired and was removed
	TouchExpired
	// TouchRenewed means the session was valid and its expiry was moved forward
	TouchRenewed
)

// SessionStore keeps one session per username
type SessionStore struct {
	*KeyLocks
	doc *Document[sessionRecord]
	rev *revisions
}

// Get returns the session of username, expired or not
func (s *SessionStore) Get(username string) (domain.Session, bool) {
	var (
		session domain.Session
		found   bool
	)
	s.doc.View(func(records map[string]sessionRecord) {
		if r, ok := records[username]; ok {
			session, found = r.session(username), true
		}
	})
	return session, found
}

// Put stores the session, replacing the previous one of the same user
func (s *SessionStore) Put(session domain.Session) (domain.Session, error) {
	err := s.doc.Update(func(records map[string]sessionRecord) bool {
		session.Updated = s.rev.next(records[session.Username].Updated)
		records[session.Username] = sessionRecord{
			Token:   session.Token,
			Expiry:  session.Expiry,
			Revoked: session.Revoked,
			Updated: session.Updated,
		}
		return true
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to store session of %s: %w", session.Username, err)
	}
	return session, nil
}

// Touch validates token against the stored session and, when it is live,
// moves its expiry to newExpiry in the same critical section.
// An expired session is removed.
func (s *SessionStore) Touch(username, token string, now, newExpiry int64) (domain.Session, TouchResult, error) {
	var (
		session domain.Session
		result  = TouchMissing
	)
	err := s.doc.Update(func(records map[string]sessionRecord) bool {
		r, ok := records[username]
		if !ok || r.Revoked {
			return false
		}
		if r.Expiry <= now {
			result = TouchExpired
			delete(records, username)
			return true
		}
		if r.Token != token {
			result = TouchMismatch
			return false
		}
		r.Expiry = newExpiry
		r.Updated = s.rev.next(r.Updated)
		records[username] = r
		session, result = r.session(username), TouchRenewed
		return true
	})
	if err != nil {
		return domain.Session{}, result, fmt.Errorf("failed to renew session of %s: %w", username, err)
	}
	return session, result, nil
}

// Delete removes the session of username. A non-empty token must match the stored one.
func (s *SessionStore) Delete(username, token string) (bool, error) {
	found := false
	err := s.doc.Update(func(records map[string]sessionRecord) bool {
		r, ok := records[username]
		if !ok || (token != "" && r.Token != token) {
			return false
		}
		found = true
		delete(records, username)
		return true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete session of %s: %w", username, err)
	}
	return found, nil
}

// Revoke keeps a revoked marker for username until expiry so the logout can
// be replayed against the primary store. An empty token revokes any session.
func (s *SessionStore) Revoke(username, token string, expiry int64) (domain.Session, error) {
	var session domain.Session
	err := s.doc.Update(func(records map[string]sessionRecord) bool {
		prev := records[username]
		r := sessionRecord{
			Token:   token,
			Expiry:  max(expiry, prev.Expiry),
			Revoked: true,
			Updated: s.rev.next(prev.Updated),
		}
		records[username] = r
		session = r.session(username)
		return true
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to revoke session of %s: %w", username, err)
	}
	return session, nil
}

// DeleteExpired removes every session expired at now and returns how many were removed
func (s *SessionStore) DeleteExpired(now int64) (int, error) {
	removed := 0
	err := s.doc.Update(func(records map[string]sessionRecord) bool {
		for username, r := range records {
			if r.Expiry <= now {
				delete(records, username)
				removed++
			}
		}
		return removed > 0
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return removed, nil
}

// List returns every stored session ordered by username
func (s *SessionStore) List() []domain.Session {
	var sessions []domain.Session
	s.doc.View(func(records map[string]sessionRecord) {
		sessions = make([]domain.Session, 0, len(records))
		for _, username := range sortedKeys(records) {
			sessions = append(sessions, records[username].session(username))
		}
	})
	return sessions
}
