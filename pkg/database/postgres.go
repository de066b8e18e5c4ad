package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when no live connection handle exists
var ErrNotConnected = errors.New("postgres is not connected")

const (
	defaultConnectTimeout = 5 * time.Second
	defaultQueryTimeout   = 5 * time.Second
)

// ConnectHook runs once on every freshly opened handle before it is used
type ConnectHook func(ctx context.Context, db *sql.DB) error

// PostgresOptions tunes the connection handle and the availability probe
type PostgresOptions struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	// ProbeCache is how long a probe answer is reused before pinging again
	ProbeCache time.Duration
	OnConnect  ConnectHook
	Logger     *zap.Logger
}

// Postgres is a lazily (re)connected PostgreSQL handle.
// It doubles as the availability probe of the primary store: a failed ping
// drops the handle so the next probe dials a fresh connection.
type Postgres struct {
	dsn       string
	owned     bool
	open      func() (*sql.DB, error)
	opts      PostgresOptions
	logger    *zap.Logger
	clock     func() time.Time
	mu        sync.Mutex
	db        *sql.DB
	available bool
	checkedAt time.Time
}

// NewPostgres creates a PostgreSQL handle for dsn. No connection is made until the first probe.
func NewPostgres(dsn string, opts PostgresOptions) *Postgres {
	p := &Postgres{
		dsn:   dsn,
		owned: true,
		clock: time.Now,
	}
	p.open = func() (*sql.DB, error) { return sql.Open("postgres", p.dsn) }
	p.setOptions(opts)
	return p
}

// WrapPostgres adapts an already opened handle, typically a test double.
// The handle is never closed on failure and never replaced.
func WrapPostgres(db *sql.DB, opts PostgresOptions) *Postgres {
	p := &Postgres{
		db:        db,
		available: true,
		clock:     time.Now,
	}
	p.setOptions(opts)
	return p
}

func (p *Postgres) setOptions(opts PostgresOptions) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p.opts = opts
	p.logger = opts.Logger.Named("postgres")
}

// Connect dials the database right away and reports the first connection error
func (p *Postgres) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.probe(ctx)
	p.available = err == nil
	p.checkedAt = p.clock()
	return err
}

// IsAvailable reports whether the database answered a ping within the connect timeout.
// The answer is cached for ProbeCache; a dead handle is dropped and redialed on the next call.
func (p *Postgres) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opts.ProbeCache > 0 && !p.checkedAt.IsZero() && p.clock().Sub(p.checkedAt) < p.opts.ProbeCache {
		return p.available
	}

	err := p.probe(ctx)
	if err != nil {
		if p.available || p.checkedAt.IsZero() {
			p.logger.Warn("PostgreSQL unavailable", zap.Error(err))
		}
	} else if !p.available {
		p.logger.Info("PostgreSQL available")
	}

	p.available = err == nil
	p.checkedAt = p.clock()
	return p.available
}

func (p *Postgres) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()

	if p.db != nil {
		if err := p.db.PingContext(ctx); err != nil {
			p.drop()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		return nil
	}

	if !p.owned {
		return ErrNotConnected
	}

	db, err := p.open()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if p.opts.OnConnect != nil {
		if err := p.opts.OnConnect(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to prepare database: %w", err)
		}
	}

	p.db = db
	return nil
}

// drop forgets the current handle; callers hold p.mu
func (p *Postgres) drop() {
	if !p.owned || p.db == nil {
		return
	}
	if err := p.db.Close(); err != nil {
		p.logger.Debug("Failed to close dead handle", zap.Error(err))
	}
	p.db = nil
}

// Handle returns the current connection handle without probing
func (p *Postgres) Handle() (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil, ErrNotConnected
	}
	return p.db, nil
}

// WithQueryTimeout bounds ctx by the configured query timeout
func (p *Postgres) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opts.QueryTimeout)
}

// MarkUnavailable records a failure observed by a query so the next probe reconnects
func (p *Postgres) MarkUnavailable(cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.available {
		p.logger.Warn("PostgreSQL connection lost", zap.Error(cause))
	}
	p.available = false
	p.checkedAt = p.clock()
	p.drop()
}

// Close closes the database connection
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.available = false
	return err
}

// Ping checks if the database is available
func (p *Postgres) Ping(ctx context.Context) error {
	db, err := p.Handle()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// IsConnectionError reports whether err means the server could not be reached,
// as opposed to the server rejecting a statement
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception, 57P0x: server shutting down
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P0")
	}

	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, ErrNotConnected) ||
		errors.As(err, &netErr)
}
