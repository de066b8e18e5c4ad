// Package reconcile pushes records written to the secondary store while the
// primary store was unreachable, and tracks what has been pushed in a ledger.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultInterval is the periodic catch-up window
const DefaultInterval = 300 * time.Second

// Options tunes a Coordinator
type Options struct {
	// Interval is the minimum time between periodic passes
	Interval time.Duration
	Clock    func() time.Time
	Meter    metric.Meter
}

// Status describes the coordinator for operators
type Status struct {
	PrimaryAvailable bool                      `json:"primary_available"`
	LastSync         int64                     `json:"last_sync"`
	InProgress       bool                      `json:"sync_in_progress"`
	Synced           map[domain.EntityKind]int `json:"synced"`
	Pending          map[domain.EntityKind]int `json:"pending"`
	FailedSyncs      int                       `json:"failed_syncs"`
}

// Coordinator owns the ledger and runs reconciliation passes
type Coordinator struct {
	probe    repository.Prober
	ledger   *Ledger
	sources  []Source
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	metrics  *metrics

	mu            sync.Mutex
	lastAvailable bool
	running       atomic.Bool
	retry         atomic.Bool
}

// NewCoordinator creates a coordinator. The primary store is assumed unreachable
// until the first check, so the first successful probe triggers a pass.
func NewCoordinator(probe repository.Prober, ledger *Ledger, sources []Source, logger *zap.Logger, opts Options) (*Coordinator, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	m, err := newMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		probe:    probe,
		ledger:   ledger,
		sources:  sources,
		interval: opts.Interval,
		clock:    opts.Clock,
		logger:   logger.Named("reconcile"),
		metrics:  m,
	}, nil
}

// OpportunisticCheck probes the primary store and runs a pass on an
// offline to online transition, when the periodic window has elapsed or
// when the previous pass skipped entries that were being written.
// It reports whether a pass ran and pushed everything it attempted.
func (c *Coordinator) OpportunisticCheck(ctx context.Context) bool {
	available := c.probe.IsAvailable(ctx)
	c.metrics.setAvailable(available)

	c.mu.Lock()
	wasAvailable := c.lastAvailable
	c.lastAvailable = available
	c.mu.Unlock()

	if !available {
		if wasAvailable {
			c.logger.Warn("Primary store went offline, writes fall back to local storage")
		}
		return false
	}

	if !wasAvailable {
		c.logger.Info("Primary store reachable, reconciling local writes")
		return c.ReconcileAll(ctx)
	}

	if c.retry.Load() || c.clock().Sub(time.Unix(c.ledger.LastSync(), 0)) > c.interval {
		return c.ReconcileAll(ctx)
	}

	return false
}

// ReconcileAll pushes every pending, unexpired secondary entry to the primary store.
// A failed push is recorded and left pending; the pass continues with the next entry.
// A record the primary store rejects outright, such as a duplicate email, is recorded
// and settled for its revision. Entries busy or rewritten during the pass are left
// for the next one. It reports true only when no push failed. A pass already in progress makes it return false at once.
func (c *Coordinator) ReconcileAll(ctx context.Context) bool {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Debug("Reconciliation already in progress")
		return false
	}
	defer c.running.Store(false)

	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))
	start := c.clock()
	now := start.Unix()

	var totalPushed, totalFailed, totalSkipped int
	for _, src := range c.sources {
		kind := src.Kind()
		pushed, expired, failed, skipped := 0, 0, 0, 0

		for _, entry := range src.Entries() {
			if !c.ledger.Pending(kind, entry.Key, entry.Revision) {
				continue
			}

			if entry.Expiry > 0 && entry.Expiry <= now {
				c.ledger.MarkSynced(kind, entry.Key, entry.Revision, now)
				expired++
				continue
			}

			err := entry.Push(ctx)
			if errors.Is(err, ErrSkipped) {
				skipped++
				continue
			}
			if err != nil {
				failed++
				c.ledger.RecordFailure(FailedSync{
					Kind:  kind,
					Key:   entry.Key,
					Error: err.Error(),
					At:    c.clock().Unix(),
					RunID: runID,
				})
				if repository.IsLogical(err) {
					c.ledger.MarkSynced(kind, entry.Key, entry.Revision, now)
					logger.Error("Primary store rejected entry, it will not be retried",
						zap.String("kind", string(kind)),
						zap.String("key", redact(kind, entry.Key)),
						zap.Error(err),
					)
					continue
				}
				logger.Warn("Failed to push entry",
					zap.String("kind", string(kind)),
					zap.String("key", redact(kind, entry.Key)),
					zap.Error(err),
				)
				continue
			}

			c.ledger.MarkSynced(kind, entry.Key, entry.Revision, now)
			pushed++
		}

		if err := c.ledger.Save(); err != nil {
			logger.Error("Failed to persist sync ledger", zap.Error(err))
		}

		c.metrics.record(ctx, kind, pushed, expired, failed)
		if pushed+expired+failed+skipped > 0 {
			logger.Info("Reconciled entity",
				zap.String("kind", string(kind)),
				zap.Int("pushed", pushed),
				zap.Int("expired", expired),
				zap.Int("failed", failed),
				zap.Int("skipped", skipped),
			)
		}

		totalPushed += pushed
		totalFailed += failed
		totalSkipped += skipped
	}
	c.retry.Store(totalSkipped > 0)

	c.ledger.SetLastSync(c.clock().Unix())
	if err := c.ledger.Save(); err != nil {
		logger.Error("Failed to persist sync ledger", zap.Error(err))
	}

	ok := totalFailed == 0
	c.metrics.pass(ctx, c.clock().Sub(start), ok)
	logger.Info("Reconciliation finished",
		zap.Int("pushed", totalPushed),
		zap.Int("failed", totalFailed),
		zap.Int("skipped", totalSkipped),
	)

	return ok
}

// Run checks the primary store every poll interval until ctx is done
func (c *Coordinator) Run(ctx context.Context, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	c.OpportunisticCheck(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.OpportunisticCheck(ctx)
		}
	}
}

// Status reports availability, the ledger summary and how many local entries await a push
func (c *Coordinator) Status(ctx context.Context) Status {
	pending := make(map[domain.EntityKind]int, len(c.sources))
	for _, src := range c.sources {
		kind := src.Kind()
		pending[kind] = 0
		for _, entry := range src.Entries() {
			if c.ledger.Pending(kind, entry.Key, entry.Revision) {
				pending[kind]++
			}
		}
	}

	return Status{
		PrimaryAvailable: c.probe.IsAvailable(ctx),
		LastSync:         c.ledger.LastSync(),
		InProgress:       c.running.Load(),
		Synced:           c.ledger.SyncedCounts(),
		Pending:          pending,
		FailedSyncs:      len(c.ledger.Failures()),
	}
}

// Ledger exposes the ledger for read-only inspection
func (c *Coordinator) Ledger() *Ledger {
	return c.ledger
}

// Reset clears the ledger so every local entry is pushed again on the next pass
func (c *Coordinator) Reset() error {
	c.logger.Warn("Clearing sync ledger")
	return c.ledger.Reset()
}

// redact shortens token keys before they reach the logs
func redact(kind domain.EntityKind, key string) string {
	if kind != domain.KindResetTokens || len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
