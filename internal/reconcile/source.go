package reconcile

import (
	"context"
	"errors"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
)

// ErrSkipped is returned by Entry.Push when the record is busy or changed since it was listed.
// The entry stays pending and is offered again on the next pass.
var ErrSkipped = errors.New("entry busy or changed since listing")

// Entry is one secondary store record offered for reconciliation
type Entry struct {
	Key      string
	Revision int64
	Expiry   int64
	Push     func(ctx context.Context) error
}

// Source lists the secondary records of one entity kind
type Source interface {
	Kind() domain.EntityKind
	Entries() []Entry
}

// Local is the view of a secondary store a source needs: listing, a fresh read
// of one key and the key lock its managers write under
type Local[E domain.Syncable] interface {
	List() []E
	Get(key string) (E, bool)
	TryLock(key string) (func(), bool)
}

type source[E domain.Syncable] struct {
	kind  domain.EntityKind
	local Local[E]
	push  func(ctx context.Context, entity E) error
}

// NewSource builds a source from a secondary store and an idempotent push into the primary store
func NewSource[E domain.Syncable](kind domain.EntityKind, local Local[E], push func(ctx context.Context, entity E) error) Source {
	return &source[E]{kind: kind, local: local, push: push}
}

func (s *source[E]) Kind() domain.EntityKind {
	return s.kind
}

func (s *source[E]) Entries() []Entry {
	entities := s.local.List()
	entries := make([]Entry, 0, len(entities))
	for _, entity := range entities {
		key, revision := entity.SyncKey(), entity.SyncRevision()
		entries = append(entries, Entry{
			Key:      key,
			Revision: revision,
			Expiry:   entity.SyncExpiry(),
			Push: func(ctx context.Context) error {
				return s.pushCurrent(ctx, key, revision)
			},
		})
	}
	return entries
}

// pushCurrent pushes key under its lock, provided the stored record still carries revision.
// A concurrent writer holding the lock or a newer write makes it return ErrSkipped.
func (s *source[E]) pushCurrent(ctx context.Context, key string, revision int64) error {
	unlock, ok := s.local.TryLock(key)
	if !ok {
		return ErrSkipped
	}
	defer unlock()

	current, found := s.local.Get(key)
	if !found || current.SyncRevision() != revision {
		return ErrSkipped
	}
	return s.push(ctx, current)
}

// Sources wires every secondary store to the upsert of its primary repository.
// Revoked sessions and reset tokens are replayed as deletes.
func Sources(stores *secondary.Stores, repos *repository.Repositories) []Source {
	return []Source{
		NewSource(domain.KindUsers, stores.Users, func(ctx context.Context, u domain.User) error {
			return repos.User.Upsert(ctx, &u)
		}),
		NewSource(domain.KindSessions, stores.Sessions, func(ctx context.Context, s domain.Session) error {
			if s.Revoked {
				return ignoreNotFound(repos.Session.Delete(ctx, s.Username, s.Token))
			}
			return repos.Session.Upsert(ctx, &s)
		}),
		NewSource(domain.KindVerification, stores.Verifications, func(ctx context.Context, v domain.VerificationToken) error {
			return repos.Verification.Upsert(ctx, &v)
		}),
		NewSource(domain.KindResetTokens, stores.ResetTokens, func(ctx context.Context, rt domain.ResetToken) error {
			if rt.Revoked {
				return ignoreNotFound(repos.ResetToken.Delete(ctx, rt.Token))
			}
			return repos.ResetToken.Upsert(ctx, &rt)
		}),
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
