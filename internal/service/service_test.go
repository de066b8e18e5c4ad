package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/hybrid-auth/internal/reconcile"
	"github.com/prperemyshlev/hybrid-auth/internal/repository/memory"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
	"github.com/prperemyshlev/hybrid-auth/internal/utils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	Kind     string
	Username string
	Email    string
	Token    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendVerification(_ context.Context, username, email, token string) error {
	m.record(sentMail{Kind: "verification", Username: username, Email: email, Token: token})
	return nil
}

func (m *recordingMailer) SendReset(_ context.Context, username, email, token string) error {
	m.record(sentMail{Kind: "reset", Username: username, Email: email, Token: token})
	return nil
}

func (m *recordingMailer) SendConfirmation(_ context.Context, username, email string) error {
	m.record(sentMail{Kind: "confirmation", Username: username, Email: email})
	return nil
}

func (m *recordingMailer) record(mail sentMail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
}

func (m *recordingMailer) ofKind(kind string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, mail := range m.sent {
		if mail.Kind == kind {
			out = append(out, mail)
		}
	}
	return out
}

type testEnv struct {
	primary       *memory.Store
	stores        *secondary.Stores
	coord         *reconcile.Coordinator
	clock         *fakeClock
	mailer        *recordingMailer
	users         *UserManager
	sessions      *SessionManager
	verifications *VerificationManager
	resets        *ResetManager
	auth          AuthService
	admin         *Admin
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, t.TempDir())
}

func newTestEnvAt(t *testing.T, dir string) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	primary := memory.New()
	stores := secondary.NewStores(dir, zap.NewNop(), clock.Now)
	ledger := reconcile.OpenLedger(filepath.Join(dir, reconcile.LedgerFile), 0, zap.NewNop())

	coord, err := reconcile.NewCoordinator(primary, ledger, reconcile.Sources(stores, primary.Repositories()), zap.NewNop(), reconcile.Options{
		Clock: clock.Now,
	})
	require.NoError(t, err)

	backend := Backend{
		Primary:   primary.Repositories(),
		Secondary: stores,
		Probe:     primary,
		Syncer:    coord,
		Logger:    zap.NewNop(),
		Clock:     clock.Now,
	}
	mailer := &recordingMailer{}

	users := NewUserManager(backend, utils.NewBcryptHasher(bcrypt.MinCost))
	sessions := NewSessionManager(backend, time.Hour, time.Hour)
	verifications := NewVerificationManager(backend, mailer, 24*time.Hour)
	resets := NewResetManager(backend, users, mailer, time.Hour)

	return &testEnv{
		primary:       primary,
		stores:        stores,
		coord:         coord,
		clock:         clock,
		mailer:        mailer,
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		resets:        resets,
		auth:          NewAuthService(users, sessions, verifications, resets, nil, zap.NewNop()),
		admin:         NewAdmin(users, sessions, verifications, resets, zap.NewNop()),
	}
}

func (e *testEnv) offline() { e.primary.SetAvailable(false) }
func (e *testEnv) online()  { e.primary.SetAvailable(true) }
