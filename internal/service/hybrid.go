package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
	"go.uber.org/zap"
)

// Backend bundles both storage tiers and the components that choose between them
type Backend struct {
	Primary   *repository.Repositories
	Secondary *secondary.Stores
	Probe     repository.Prober
	Syncer    Syncer
	Logger    *zap.Logger
	Clock     func() time.Time
}

type noopSyncer struct{}

func (noopSyncer) OpportunisticCheck(context.Context) bool { return false }

// hybrid carries what every entity manager needs to route between the tiers
type hybrid struct {
	probe  repository.Prober
	syncer Syncer
	logger *zap.Logger
	clock  func() time.Time
}

func newHybrid(b Backend, name string) hybrid {
	h := hybrid{
		probe:  b.Probe,
		syncer: b.Syncer,
		logger: b.Logger,
		clock:  b.Clock,
	}
	if h.syncer == nil {
		h.syncer = noopSyncer{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	h.logger = h.logger.Named(name)
	return h
}

func (h *hybrid) now() int64 {
	return h.clock().Unix()
}

func (h *hybrid) online(ctx context.Context) bool {
	return h.probe.IsAvailable(ctx)
}

func (h *hybrid) checkSync(ctx context.Context) {
	h.syncer.OpportunisticCheck(ctx)
}

// absorb logs a primary store failure that is about to be served from the local store
func (h *hybrid) absorb(err error, msg string, fields ...zap.Field) {
	h.logger.Warn(msg, append(fields, zap.Error(err))...)
}

// localFailure reports a local write error after the primary store was not usable either
func (h *hybrid) localFailure(err error, msg string, fields ...zap.Field) error {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// sendMail delivers an email; a failed delivery is logged and does not undo the stored state
func (h *hybrid) sendMail(ctx context.Context, mailer Mailer, username string, deliver func(context.Context) error) {
	if mailer == nil {
		return
	}
	if err := deliver(ctx); err != nil {
		h.logger.Warn("Email not delivered", zap.String("username", username), zap.Error(err))
	}
}

// lookup reads from the primary store when it is reachable and has the record,
// otherwise from the local store
func lookup[T any](ctx context.Context, h *hybrid, key string, primary func(context.Context) (*T, error), local func() (T, bool)) (*T, bool) {
	if h.online(ctx) {
		v, err := primary(ctx)
		if err == nil {
			return v, true
		}
		if !errors.Is(err, repository.ErrNotFound) {
			h.absorb(err, "Primary store read failed, using local store", zap.String("key", key))
		}
	}

	v, ok := local()
	if !ok {
		return nil, false
	}
	return &v, true
}
