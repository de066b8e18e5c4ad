package secondary

import (
	"fmt"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
)

type verificationRecord struct {
	Token    string `json:"token"`
	Expiry   int64  `json:"expiry"`
	Verified bool   `json:"verified"`
	Email    string `json:"email"`
	Updated  int64  `json:"updated,omitempty"`
}

func (r verificationRecord) verification(username string) domain.VerificationToken {
	return domain.VerificationToken{
		Username: username,
		Email:    r.Email,
		Token:    r.Token,
		Expiry:   r.Expiry,
		Verified: r.Verified,
		Updated:  r.Updated,
	}
}

// VerificationStore keeps one verification record per username
type VerificationStore struct {
	*KeyLocks
	doc *Document[verificationRecord]
	rev *revisions
}

// Get returns the verification record of username
func (s *VerificationStore) Get(username string) (domain.VerificationToken, bool) {
	var (
		v     domain.VerificationToken
		found bool
	)
	s.doc.View(func(records map[string]verificationRecord) {
		if r, ok := records[username]; ok {
			v, found = r.verification(username), true
		}
	})
	return v, found
}

// Put stores v, replacing the previous record of the same user
func (s *VerificationStore) Put(v domain.VerificationToken) (domain.VerificationToken, error) {
	err := s.doc.Update(func(records map[string]verificationRecord) bool {
		v.Updated = s.rev.next(records[v.Username].Updated)
		records[v.Username] = verificationRecord{
			Token:    v.Token,
			Expiry:   v.Expiry,
			Verified: v.Verified,
			Email:    v.Email,
			Updated:  v.Updated,
		}
		return true
	})
	if err != nil {
		return domain.VerificationToken{}, fmt.Errorf("failed to store verification of %s: %w", v.Username, err)
	}
	return v, nil
}

// MarkVerified sets the verified flag of username
func (s *VerificationStore) MarkVerified(username string) (bool, error) {
	found := false
	err := s.doc.Update(func(records map[string]verificationRecord) bool {
		r, ok := records[username]
		if !ok {
			return false
		}
		found = true
		if r.Verified {
			return false
		}
		r.Verified = true
		r.Updated = s.rev.next(r.Updated)
		records[username] = r
		return true
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark %s verified: %w", username, err)
	}
	return found, nil
}

// Delete removes the verification record of username
func (s *VerificationStore) Delete(username string) (bool, error) {
	found := false
	err := s.doc.Update(func(records map[string]verificationRecord) bool {
		if _, ok := records[username]; !ok {
			return false
		}
		found = true
		delete(records, username)
		return true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete verification of %s: %w", username, err)
	}
	return found, nil
}

// DeleteExpiredUnverified removes unverified records expired at now
func (s *VerificationStore) DeleteExpiredUnverified(now int64) (int, error) {
	removed := 0
	err := s.doc.Update(func(records map[string]verificationRecord) bool {
		for username, r := range records {
			if !r.Verified && r.Expiry <= now {
				delete(records, username)
				removed++
			}
		}
		return removed > 0
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verifications: %w", err)
	}
	return removed, nil
}

// List returns every verification record ordered by username
func (s *VerificationStore) List() []domain.VerificationToken {
	var list []domain.VerificationToken
	s.doc.View(func(records map[string]verificationRecord) {
		list = make([]domain.VerificationToken, 0, len(records))
		for _, username := range sortedKeys(records) {
			list = append(list, records[username].verification(username))
		}
	})
	return list
}
