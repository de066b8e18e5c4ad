package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
	"go.uber.org/zap"
)

// LedgerFile is the name of the ledger document inside the storage directory
const LedgerFile = "sync_tracking.json"

const defaultMaxFailures = 50

// FailedSync records one push that did not reach the primary store
type FailedSync struct {
	Kind  domain.EntityKind `json:"kind"`
	Key   string            `json:"key"`
	Error string            `json:"error"`
	At    int64             `json:"at"`
	RunID string            `json:"run_id"`
}

type ledgerState struct {
	LastSync           int64            `json:"last_sync"`
	SyncedUsers        map[string]int64 `json:"synced_users"`
	SyncedSessions     map[string]int64 `json:"synced_sessions"`
	SyncedVerification map[string]int64 `json:"synced_verification"`
	SyncedResetTokens  map[string]int64 `json:"synced_reset_tokens"`
	FailedSyncs        []FailedSync     `json:"failed_syncs"`
}

func newLedgerState() ledgerState {
	return ledgerState{
		SyncedUsers:        make(map[string]int64),
		SyncedSessions:     make(map[string]int64),
		SyncedVerification: make(map[string]int64),
		SyncedResetTokens:  make(map[string]int64),
		FailedSyncs:        []FailedSync{},
	}
}

func (s *ledgerState) synced(kind domain.EntityKind) map[string]int64 {
	switch kind {
	case domain.KindUsers:
		return s.SyncedUsers
	case domain.KindSessions:
		return s.SyncedSessions
	case domain.KindVerification:
		return s.SyncedVerification
	case domain.KindResetTokens:
		return s.SyncedResetTokens
	default:
		return nil
	}
}

// Ledger is the persisted record of which secondary entries reached the primary store.
// Per key it holds the newest revision pushed; values only grow until Reset.
type Ledger struct {
	mu          sync.Mutex
	path        string
	maxFailures int
	logger      *zap.Logger
	state       ledgerState
}

// OpenLedger loads the ledger at path; a missing or corrupt file starts empty
func OpenLedger(path string, maxFailures int, logger *zap.Logger) *Ledger {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}

	l := &Ledger{
		path:        path,
		maxFailures: maxFailures,
		logger:      logger,
		state:       newLedgerState(),
	}
	l.load()
	return l
}

func (l *Ledger) load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to read sync ledger, starting empty", zap.String("path", l.path), zap.Error(err))
		}
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	state := newLedgerState()
	if err := json.Unmarshal(data, &state); err != nil {
		l.logger.Warn("Corrupt sync ledger, starting empty", zap.String("path", l.path), zap.Error(err))
		return
	}

	for _, m := range []*map[string]int64{
		&state.SyncedUsers,
		&state.SyncedSessions,
		&state.SyncedVerification,
		&state.SyncedResetTokens,
	} {
		if *m == nil {
			*m = make(map[string]int64)
		}
	}
	if state.FailedSyncs == nil {
		state.FailedSyncs = []FailedSync{}
	}
	l.state = state
}

// Pending reports whether the entry at revision still has to be pushed
func (l *Ledger) Pending(kind domain.EntityKind, key string, revision int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	synced, ok := l.state.synced(kind)[key]
	if !ok {
		return true
	}
	return synced < revision
}

// IsSynced reports whether key has ever been marked synced
func (l *Ledger) IsSynced(kind domain.EntityKind, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.state.synced(kind)[key]
	return ok
}

// MarkSynced records that revision of key reached the primary store.
// Entries without a revision are stamped with now.
func (l *Ledger) MarkSynced(kind domain.EntityKind, key string, revision, now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	synced := l.state.synced(kind)
	if synced == nil {
		return
	}

	mark := revision
	if mark == 0 {
		mark = now
	}
	if prev, ok := synced[key]; ok && prev >= mark {
		return
	}
	synced[key] = mark
}

// RecordFailure appends a failed push, keeping only the newest records
func (l *Ledger) RecordFailure(f FailedSync) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.FailedSyncs = append(l.state.FailedSyncs, f)
	if over := len(l.state.FailedSyncs) - l.maxFailures; over > 0 {
		l.state.FailedSyncs = append([]FailedSync{}, l.state.FailedSyncs[over:]...)
	}
}

// SetLastSync records the end of a reconciliation pass
func (l *Ledger) SetLastSync(ts int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.LastSync = ts
}

// LastSync returns when the last reconciliation pass finished
func (l *Ledger) LastSync() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state.LastSync
}

// SyncedCounts returns the number of synced keys per kind
func (l *Ledger) SyncedCounts() map[domain.EntityKind]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[domain.EntityKind]int, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		counts[kind] = len(l.state.synced(kind))
	}
	return counts
}

// Failures returns a copy of the retained failure records, oldest first
func (l *Ledger) Failures() []FailedSync {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]FailedSync{}, l.state.FailedSyncs...)
}

// Save persists the ledger
func (l *Ledger) Save() error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.state, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode sync ledger: %w", err)
	}

	return secondary.WriteFileAtomic(l.path, data)
}

// Reset forgets every synced key and failure. Intended for tests and operators only.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	l.state = newLedgerState()
	l.mu.Unlock()

	return l.Save()
}
