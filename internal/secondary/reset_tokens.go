package secondary

import (
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
)

type resetTokenRecord struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Expiry   int64  `json:"expiry"`
	Created  int64  `json:"created"`
	Revoked  bool   `json:"revoked,omitempty"`
	Updated  int64  `json:"updated,omitempty"`
}

func (r resetTokenRecord) resetToken(token string) domain.ResetToken {
	return domain.ResetToken{
		Token:    token,
		Username: r.Username,
		Email:    r.Email,
		Expiry:   r.Expiry,
		Created:  r.Created,
		Revoked:  r.Revoked,
		Updated:  r.Updated,
	}
}

// ResetTokenStore keeps password reset requests keyed by token
type ResetTokenStore struct {
	*KeyLocks
	doc *Document[resetTokenRecord]
	rev *revisions
}

// Get returns the reset request stored under token without checking expiry
func (s *ResetTokenStore) Get(token string) (domain.ResetToken, bool) {
	var (
		rt    domain.ResetToken
		found bool
	)
	s.doc.View(func(records map[string]resetTokenRecord) {
		if r, ok := records[token]; ok {
			rt, found = r.resetToken(token), true
		}
	})
	return rt, found
}

// Lookup returns the reset request stored under token if it is still live at now.
// An expired request is removed. A revoked one is reported as missing.
func (s *ResetTokenStore) Lookup(token string, now int64) (domain.ResetToken, bool, error) {
	var (
		rt    domain.ResetToken
		found bool
	)
	err := s.doc.Update(func(records map[string]resetTokenRecord) bool {
		r, ok := records[token]
		if !ok {
			return false
		}
		if r.Expiry <= now {
			delete(records, token)
			return true
		}
		if r.Revoked {
			return false
		}
		rt, found = r.resetToken(token), true
		return false
	})
	if err != nil {
		return domain.ResetToken{}, false, fmt.Errorf("failed to drop expired reset token: %w", err)
	}
	return rt, found, nil
}

// Put stores the reset request
func (s *ResetTokenStore) Put(rt domain.ResetToken) (domain.ResetToken, error) {
	err := s.doc.Update(func(records map[string]resetTokenRecord) bool {
		rt.Updated = s.rev.next(records[rt.Token].Updated)
		records[rt.Token] = resetTokenRecord{
			Username: rt.Username,
			Email:    rt.Email,
			Expiry:   rt.Expiry,
			Created:  rt.Created,
			Revoked:  rt.Revoked,
			Updated:  rt.Updated,
		}
		return true
	})
	if err != nil {
		return domain.ResetToken{}, fmt.Errorf("failed to store reset token: %w", err)
	}
	return rt, nil
}

// Revoke marks the request as consumed. The marker lives until the original
// expiry so the removal can be replayed against the primary store.
func (s *ResetTokenStore) Revoke(rt domain.ResetToken) (domain.ResetToken, error) {
	rt.Revoked = true
	return s.Put(rt)
}

// Delete removes the reset request stored under token
func (s *ResetTokenStore) Delete(token string) (bool, error) {
	found := false
	err := s.doc.Update(func(records map[string]resetTokenRecord) bool {
		if _, ok := records[token]; !ok {
			return false
		}
		found = true
		delete(records, token)
		return true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete reset token: %w", err)
	}
	return found, nil
}

// DeleteExpired removes every request expired at now
func (s *ResetTokenStore) DeleteExpired(now int64) (int, error) {
	removed := 0
	err := s.doc.Update(func(records map[string]resetTokenRecord) bool {
		for token, r := range records {
			if r.Expiry <= now {
				delete(records, token)
				removed++
			}
		}
		return removed > 0
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return removed, nil
}

// List returns every reset request ordered by token
func (s *ResetTokenStore) List() []domain.ResetToken {
	var list []domain.ResetToken
	s.doc.View(func(records map[string]resetTokenRecord) {
		list = make([]domain.ResetToken, 0, len(records))
		for _, token := range sortedKeys(records) {
			list = append(list, records[token].resetToken(token))
		}
	})
	return list
}
