package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/hybrid-auth/internal/config"
	"github.com/prperemyshlev/hybrid-auth/internal/migrations"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/internal/repository/memory"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
	"github.com/prperemyshlev/hybrid-auth/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const serviceName = "hybrid-auth"

type Infrastructure interface {
	// Primary returns the repositories of the primary store
	Primary() *repository.Repositories
	// Probe reports whether the primary store is reachable
	Probe() repository.Prober
	// Redis returns nil when Redis is disabled or was unreachable at startup
	Redis() *database.Redis
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	primary        *repository.Repositories
	probe          repository.Prober
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ Infrastructure = &infrastructure{}

// NewInfrastructure builds the shared dependencies. An unreachable PostgreSQL
// or Redis server does not fail startup: the primary store is retried by the
// probe and rate limiting is switched off.
func NewInfrastructure(ctx context.Context, cfg config.Config) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	switch cfg.PrimaryDriver {
	case config.DriverMemory:
		store := memory.New()
		i.primary = store.Repositories()
		i.probe = store
		logger.Warn("Using in-memory primary store, data is lost on exit")
	default:
		i.postgres = database.NewPostgres(cfg.Postgres.DSN(), database.PostgresOptions{
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
			QueryTimeout:   cfg.Postgres.QueryTimeout.Duration,
			ProbeCache:     cfg.Postgres.ProbeCache.Duration,
			OnConnect:      migrations.Apply,
			Logger:         logger,
		})
		if err := i.postgres.Connect(ctx); err != nil {
			logger.Warn("PostgreSQL unavailable at startup, running on local storage", zap.Error(err))
		}
		i.primary = repository.NewRepositories(i.postgres)
		i.probe = i.postgres
	}

	if cfg.Redis.Enabled {
		redis, err := database.NewRedis(ctx, database.RedisOptions{
			Addr:      cfg.Redis.Address(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting and login lockout disabled", zap.Error(err))
		} else {
			i.redis = redis
		}
	}

	meterProvider, metricsHandler, err := observability.InitTelemetry(serviceName)
	if err != nil {
		_ = i.closeStores()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.meterProvider = meterProvider
	i.metricsHandler = metricsHandler

	return i, nil
}

func (i *infrastructure) Primary() *repository.Repositories {
	return i.primary
}

func (i *infrastructure) Probe() repository.Prober {
	return i.probe
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *infrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

func (i *infrastructure) closeStores() error {
	var errs []error
	if i.postgres != nil {
		errs = append(errs, i.postgres.Close())
	}
	if i.redis != nil {
		errs = append(errs, i.redis.Close())
	}
	return errors.Join(errs...)
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 2)

	go func() { errs <- i.closeStores() }()
	go func() { errs <- observability.Shutdown(ctx, i.meterProvider, i.logger) }()

	return errors.Join(<-errs, <-errs)
}
