package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/database"
	"bankledger/internal/handlers"
	"bankledger/internal/middleware"
	"bankledger/internal/repositories"
	"bankledger/internal/services"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout     = 10 * time.Second
	maintenanceInterval = time.Hour
	requestBodyLimit    = "64K"
)

// App owns the process lifecycle: database, HTTP server and background loops
type App struct {
	Config *config.Config
	Logger *slog.Logger
}

func New(conf *config.Config, l *slog.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

// Server is the wired object graph behind the HTTP API
type Server struct {
	Echo          *echo.Echo
	Ledger        *services.LedgerService
	Limiter       *middleware.VisitorLimiter
	BlacklistRepo repositories.BlacklistedTokenRepositoryInterface
	AuditRepo     repositories.AuditLogRepositoryInterface
}

// NewServer wires repositories, services, handlers and routes on top of db.
// Metrics are registered on reg and exposed at /metrics.
func NewServer(cfg *config.Config, db *database.DB, reg *prometheus.Registry, logger *slog.Logger) *Server {
	accountRepo := repositories.NewAccountRepository(db.DB)
	auditRepo := repositories.NewAuditLogRepository(db.DB)
	blacklistRepo := repositories.NewBlacklistedTokenRepository(db.DB)
	uow := repositories.NewUnitOfWork(db.DB, db.TxOptions())

	metrics := services.NewPrometheusMetrics(reg)
	auditLogger := services.NewAuditLogger(logger)

	ledger := services.NewLedgerService(uow, cfg.Ledger, auditLogger, metrics, logger)
	passwordService := services.NewPasswordService(cfg.Security)
	tokenService := services.NewTokenService(&cfg.JWT)
	authService := services.NewAuthService(
		accountRepo,
		auditRepo,
		blacklistRepo,
		passwordService,
		tokenService,
		ledger,
		metrics,
		cfg.Security,
		logger,
	)

	limiter := middleware.NewVisitorLimiter(cfg.Security.RateLimitPerSecond, 0)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = middleware.NewErrorHandler(reg, logger).Handle

	e.Use(middleware.RequestID())
	e.Use(middleware.PanicRecovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit(requestBodyLimit))
	if len(cfg.Server.CORSAllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.Server.CORSAllowOrigins,
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.TraceIDHeader},
		}))
	}

	healthHandler := handlers.NewHealthCheckHandler(db, ledger)
	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler(ledger)

	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	api := e.Group("/api/v1")
	requireAuth := middleware.RequireAuth(tokenService, blacklistRepo)

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Signup, limiter.Middleware())
	auth.POST("/login", authHandler.Login, limiter.Middleware())
	auth.POST("/logout", authHandler.Logout, requireAuth)

	account := api.Group("/account", requireAuth)
	account.GET("", accountHandler.GetAccount)
	account.GET("/balance", accountHandler.GetBalance)
	account.GET("/transactions", accountHandler.ListTransactions)
	account.GET("/reconciliation", accountHandler.Reconcile)
	account.POST("/deposits", accountHandler.Deposit)
	account.POST("/withdrawals", accountHandler.Withdraw)
	account.POST("/transfers/preview", accountHandler.PreviewTransfer)
	account.POST("/transfers", accountHandler.Transfer)

	return &Server{
		Echo:          e,
		Ledger:        ledger,
		Limiter:       limiter,
		BlacklistRepo: blacklistRepo,
		AuditRepo:     auditRepo,
	}
}

// Run serves the API until ctx is cancelled or the server fails
func (a *App) Run(ctx context.Context) error {
	db, err := database.Initialize(a.Config)
	if err != nil {
		return fmt.Errorf("app run: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			a.Logger.Error("failed to close database", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := NewServer(a.Config, db, reg, a.Logger)

	go srv.Limiter.RunCleanup(ctx)
	go a.runMaintenance(ctx, srv)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(a.Config.Server.Host, a.Config.Server.Port),
		Handler:      srv.Echo,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errChan := make(chan error, 1)

	go func() {
		a.Logger.Info("starting HTTP server",
			"addr", httpServer.Addr,
			"environment", a.Config.Server.Environment,
			"db_driver", a.Config.Database.Driver,
		)
		if runErr := srv.Echo.StartServer(httpServer); runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			errChan <- runErr
		}
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return fmt.Errorf("app run: %w", err)
	}
}

// runMaintenance drops expired revoked tokens and audit logs past retention once per interval
func (a *App) runMaintenance(ctx context.Context, srv *Server) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.maintain(ctx, srv)
		}
	}
}

func (a *App) maintain(ctx context.Context, srv *Server) {
	removed, err := srv.BlacklistRepo.DeleteExpired(ctx)
	if err != nil {
		a.Logger.Warn("blacklisted token cleanup failed", "error", err)
	} else if removed > 0 {
		a.Logger.Info("removed expired blacklisted tokens", "count", removed)
	}

	if a.Config.Security.AuditLogRetention <= 0 {
		return
	}
	removed, err = srv.AuditRepo.DeleteOlderThan(ctx, a.Config.Security.AuditLogRetention)
	if err != nil {
		a.Logger.Warn("audit log retention failed", "error", err)
	} else if removed > 0 {
		a.Logger.Info("removed audit logs past retention", "count", removed)
	}
}
