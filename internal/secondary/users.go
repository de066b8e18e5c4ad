package secondary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
)

type userRecord struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Updated  int64  `json:"updated,omitempty"`
}

func (r userRecord) user(key string) domain.User {
	username := r.Username
	if username == "" {
		username = key
	}
	return domain.User{
		Username:     username,
		Email:        r.Email,
		PasswordHash: r.Password,
		Updated:      r.Updated,
	}
}

// UserStore keeps users keyed by username
type UserStore struct {
	*KeyLocks
	doc *Document[userRecord]
	rev *revisions
}

// Get returns the user stored under the exact username
func (s *UserStore) Get(username string) (domain.User, bool) {
	var (
		user  domain.User
		found bool
	)
	s.doc.View(func(records map[string]userRecord) {
		if r, ok := records[username]; ok {
			user, found = r.user(username), true
		}
	})
	return user, found
}

// GetFold returns the user whose username equals username ignoring case.
// An exact match wins; otherwise the lexically first folded match is returned.
func (s *UserStore) GetFold(username string) (domain.User, bool) {
	var (
		user  domain.User
		found bool
	)
	s.doc.View(func(records map[string]userRecord) {
		if r, ok := records[username]; ok {
			user, found = r.user(username), true
			return
		}
		for _, key := range sortedKeys(records) {
			if strings.EqualFold(key, username) {
				user, found = records[key].user(key), true
				return
			}
		}
	})
	return user, found
}

// GetByEmail returns the user registered with email
func (s *UserStore) GetByEmail(email string) (domain.User, bool) {
	var (
		user  domain.User
		found bool
	)
	s.doc.View(func(records map[string]userRecord) {
		for _, key := range sortedKeys(records) {
			if records[key].Email == email {
				user, found = records[key].user(key), true
				return
			}
		}
	})
	return user, found
}

// Put stores u, replacing any previous record, and returns it with its new revision
func (s *UserStore) Put(u domain.User) (domain.User, error) {
	err := s.doc.Update(func(records map[string]userRecord) bool {
		u.Updated = s.rev.next(records[u.Username].Updated)
		records[u.Username] = userRecord{
			Username: u.Username,
			Email:    u.Email,
			Password: u.PasswordHash,
			Updated:  u.Updated,
		}
		return true
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to store user %s: %w", u.Username, err)
	}
	return u, nil
}

// UpdatePassword replaces the password digest of an existing user
func (s *UserStore) UpdatePassword(username, passwordHash string) (bool, error) {
	found := false
	err := s.doc.Update(func(records map[string]userRecord) bool {
		r, ok := records[username]
		if !ok {
			return false
		}
		found = true
		r.Password = passwordHash
		r.Updated = s.rev.next(r.Updated)
		records[username] = r
		return true
	})
	if err != nil {
		return false, fmt.Errorf("failed to update password of %s: %w", username, err)
	}
	return found, nil
}

// Delete removes the user and reports whether it existed
func (s *UserStore) Delete(username string) (bool, error) {
	found := false
	err := s.doc.Update(func(records map[string]userRecord) bool {
		if _, ok := records[username]; !ok {
			return false
		}
		found = true
		delete(records, username)
		return true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete user %s: %w", username, err)
	}
	return found, nil
}

// List returns every user ordered by username
func (s *UserStore) List() []domain.User {
	var users []domain.User
	s.doc.View(func(records map[string]userRecord) {
		users = make([]domain.User, 0, len(records))
		for _, key := range sortedKeys(records) {
			users = append(users, records[key].user(key))
		}
	})
	return users
}

func sortedKeys[V any](records map[string]V) []string {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
