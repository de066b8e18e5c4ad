package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/prperemyshlev/hybrid-auth/internal/reconcile"

type metrics struct {
	passes    metric.Int64Counter
	pushed    metric.Int64Counter
	expired   metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
	available atomic.Int64
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}

	m := &metrics{}
	var err error

	if m.passes, err = meter.Int64Counter("sync.passes",
		metric.WithDescription("Reconciliation passes run"),
	); err != nil {
		return nil, fmt.Errorf("failed to create passes counter: %w", err)
	}

	if m.pushed, err = meter.Int64Counter("sync.entries.pushed",
		metric.WithDescription("Secondary entries pushed to the primary store"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pushed counter: %w", err)
	}

	if m.expired, err = meter.Int64Counter("sync.entries.expired",
		metric.WithDescription("Expired secondary entries marked synced without a push"),
	); err != nil {
		return nil, fmt.Errorf("failed to create expired counter: %w", err)
	}

	if m.failed, err = meter.Int64Counter("sync.entries.failed",
		metric.WithDescription("Pushes rejected by the primary store"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failed counter: %w", err)
	}

	if m.duration, err = meter.Float64Histogram("sync.pass.duration",
		metric.WithDescription("Duration of a reconciliation pass"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if _, err = meter.Int64ObservableGauge("primary.available",
		metric.WithDescription("1 when the primary store answered the last probe"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.available.Load())
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("failed to create availability gauge: %w", err)
	}

	return m, nil
}

func (m *metrics) setAvailable(available bool) {
	if available {
		m.available.Store(1)
		return
	}
	m.available.Store(0)
}

func (m *metrics) record(ctx context.Context, kind domain.EntityKind, pushed, expired, failed int) {
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	m.pushed.Add(ctx, int64(pushed), attrs)
	m.expired.Add(ctx, int64(expired), attrs)
	m.failed.Add(ctx, int64(failed), attrs)
}

func (m *metrics) pass(ctx context.Context, elapsed time.Duration, ok bool) {
	attrs := metric.WithAttributes(attribute.Bool("ok", ok))
	m.passes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
