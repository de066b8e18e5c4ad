package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/config"
	"github.com/prperemyshlev/hybrid-auth/internal/handler"
	"github.com/prperemyshlev/hybrid-auth/internal/mail"
	"github.com/prperemyshlev/hybrid-auth/internal/reconcile"
	"github.com/prperemyshlev/hybrid-auth/internal/secondary"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
	"github.com/prperemyshlev/hybrid-auth/internal/utils"
	"github.com/prperemyshlev/hybrid-auth/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra       Infrastructure
	config      *config.Config
	router      *gin.Engine
	server      *http.Server
	coordinator *reconcile.Coordinator
	admin       *service.Admin
	mailer      *mail.Gateway
	background  sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()

	stores := secondary.NewStores(cfg.StorageDir, logger, nil)
	ledger := reconcile.OpenLedger(filepath.Join(cfg.StorageDir, reconcile.LedgerFile), cfg.Sync.FailedHistory, logger)

	coordinator, err := reconcile.NewCoordinator(
		infra.Probe(),
		ledger,
		reconcile.Sources(stores, infra.Primary()),
		logger,
		reconcile.Options{
			Interval: cfg.Sync.Interval.Duration,
			Meter:    infra.MeterProvider().Meter(serviceName),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync coordinator: %w", err)
	}

	mailer, err := mail.New(mail.Settings{
		Driver: cfg.Mail.Driver,
		SMTP: mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		},
		AMQPURL: cfg.Mail.AMQPURL,
		Queue:   cfg.Mail.Queue,
		Links: mail.Links{
			AppName:   cfg.Mail.AppName,
			VerifyURL: cfg.Mail.VerifyURL,
			ResetURL:  cfg.Mail.ResetURL,
			LoginURL:  cfg.Mail.LoginURL,
		},
	}, logger)
	if err != nil {
		return nil, err
	}

	backend := service.Backend{
		Primary:   infra.Primary(),
		Secondary: stores,
		Probe:     infra.Probe(),
		Syncer:    coordinator,
		Logger:    logger,
	}

	users := service.NewUserManager(backend, utils.NewBcryptHasher(cfg.Security.BCryptCost))
	sessions := service.NewSessionManager(backend, cfg.Session.Duration.Duration, cfg.Session.Renewal.Duration)
	verifications := service.NewVerificationManager(backend, mailer, cfg.Tokens.VerificationTTL.Duration)
	resets := service.NewResetManager(backend, users, mailer, cfg.Tokens.ResetTTL.Duration)

	var (
		rateLimiter service.Limiter
		guard       service.LoginGuard
	)
	if redis := infra.Redis(); redis != nil {
		rateLimiter = service.NewRateLimiter(redis)
		guard = service.NewLoginLockout(redis,
			cfg.Security.LockoutAttempts,
			cfg.Security.LockoutDuration.Duration,
			cfg.Security.LockoutMax.Duration,
		)
	}

	authService := service.NewAuthService(users, sessions, verifications, resets, guard, logger)
	admin := service.NewAdmin(users, sessions, verifications, resets, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, routes{
		auth:         handler.NewAuthHandler(authService),
		verification: handler.NewVerificationHandler(authService),
		password:     handler.NewPasswordHandler(authService),
		sync:         handler.NewSyncHandler(coordinator),
		admin:        handler.NewAdminHandler(admin),
		authService:  authService,
		rateLimiter:  rateLimiter,
		health:       NewHealthChecker(infra.Probe(), infra.Redis()),
		metrics:      infra.MetricsHandler(),
		logger:       logger,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:       infra,
		config:      cfg,
		router:      router,
		server:      srv,
		coordinator: coordinator,
		admin:       admin,
		mailer:      mailer,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Coordinator() *reconcile.Coordinator {
	return a.coordinator
}

type routes struct {
	auth         *handler.AuthHandler
	verification *handler.VerificationHandler
	password     *handler.PasswordHandler
	sync         *handler.SyncHandler
	admin        *handler.AdminHandler
	authService  service.AuthService
	rateLimiter  service.Limiter
	health       *HealthChecker
	metrics      http.Handler
	logger       *zap.Logger
}

func setupRoutes(router *gin.Engine, cfg *config.Config, r routes) {
	router.GET("/metrics", observability.PrometheusHandler(r.metrics))
	router.GET("/health", r.health.Handler)

	limited := func() gin.HandlerFunc {
		return handler.RateLimitMiddleware(r.rateLimiter,
			cfg.Security.RateLimitRequests,
			cfg.Security.RateLimitWindow.Duration,
			handler.RouteAndIPKey,
			r.logger,
		)
	}
	session := handler.SessionMiddleware(r.authService)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", limited(), r.auth.Signup)
			auth.POST("/login", limited(), r.auth.Login)
			auth.POST("/logout", session, r.auth.Logout)
			auth.GET("/session", session, r.auth.Session)
			auth.POST("/password", session, r.auth.ChangePassword)
		}

		verification := api.Group("/verification")
		{
			verification.POST("/verify", limited(), r.verification.Verify)
			verification.POST("/resend", limited(), r.verification.Resend)
			verification.GET("/:username", r.verification.Status)
		}

		password := api.Group("/password")
		{
			password.POST("/forgot", limited(), r.password.Forgot)
			password.GET("/reset/:token", limited(), r.password.CheckToken)
			password.POST("/reset", limited(), r.password.Reset)
		}

		api.GET("/sync/status", r.sync.Status)
		api.POST("/sync", r.sync.Trigger)

		if cfg.Security.AdminToken != "" {
			admin := api.Group("/admin", handler.AdminMiddleware(cfg.Security.AdminToken))
			{
				admin.GET("/users", r.admin.ListUsers)
				admin.DELETE("/users/:username", r.admin.DeleteUser)
				admin.POST("/cleanup", r.admin.Cleanup)
				admin.POST("/sync/reset", r.sync.Reset)
			}
		}
	}
}

// Run listens on the configured address and serves until ctx is done
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, listener)
}

// Serve runs the HTTP server on listener together with the sync poll and the
// expiry sweeps, and shuts everything down when ctx is done
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	a.startBackground(bgCtx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("addr", listener.Addr().String()),
			zap.String("storage_dir", a.config.StorageDir),
		)

		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	stopBackground()
	a.background.Wait()

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) startBackground(ctx context.Context) {
	a.background.Add(2)

	go func() {
		defer a.background.Done()
		a.coordinator.Run(ctx, a.config.Sync.PollInterval.Duration)
	}()

	go func() {
		defer a.background.Done()
		a.runCleanup(ctx, a.config.Sync.CleanupInterval.Duration)
	}()
}

// runCleanup sweeps expired tokens from both stores every interval
func (a *App) runCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := a.admin.Cleanup(ctx)
			a.infra.Logger().Debug("Expiry sweep finished",
				zap.Int("sessions", report.Sessions),
				zap.Int("verifications", report.Verifications),
				zap.Int("reset_tokens", report.ResetTokens),
			)
		}
	}
}

// Shutdown stops the server and releases the stores. Calls after the first return its result.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown()
	})
	return a.shutdownErr
}

func (a *App) shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 3)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.mailer.Close()
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
