package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/grpc"
	healthhttp "github.com/shestoi/adminpanel/platform/health/http"
	platformlogging "github.com/shestoi/adminpanel/platform/logging"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
	platformpostgres "github.com/shestoi/adminpanel/platform/postgres"
	platformshutdown "github.com/shestoi/adminpanel/platform/shutdown"
	httpapi "github.com/shestoi/adminpanel/services/user/internal/api/http"
	"github.com/shestoi/adminpanel/services/user/internal/config"
	"github.com/shestoi/adminpanel/services/user/internal/repository"
	"github.com/shestoi/adminpanel/services/user/internal/repository/memory"
	"github.com/shestoi/adminpanel/services/user/internal/repository/postgres"
	"github.com/shestoi/adminpanel/services/user/internal/service"
	"github.com/shestoi/adminpanel/services/user/migrations"
)

// App содержит все зависимости для запуска и корректного shutdown User Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	health      *platformhealth.Server
	healthAddr  string
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости User Service
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := platformlogging.New(platformlogging.FromEnv(config.ServiceName, string(cfg.AppEnv)))
	if err != nil {
		return nil, err
	}
	logger.Info("Building User service", cfg.Fields()...)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	ok := false
	defer func() {
		if !ok {
			_ = shutdownMgr.Shutdown()
		}
	}()

	otelShutdown, err := platformobservability.Init(ctx, cfg.Otel)
	if err != nil {
		return nil, err
	}
	shutdownMgr.Add("otel", otelShutdown)

	checks := map[string]healthhttp.Check{}

	var repo repository.UserRepository
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory user storage")
		repo = memory.NewRepository()
	default:
		pool, err := platformpostgres.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.Pool(pool))
		if err := platformpostgres.Migrate(ctx, pool, migrations.FS); err != nil {
			return nil, err
		}
		checks["postgres"] = pool.Ping
		repo = postgres.NewRepository(pool)
	}

	userService := service.NewService(logger, repo, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), 0)
	handler := httpapi.NewHandler(userService, logger)
	reg := metrics.New(config.ServiceName)
	router := httpapi.NewRouter(handler, auth.NewVerifier(cfg.JWTSecret), checks, reg, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.HTTPServer(httpServer))

	var health *platformhealth.Server
	if cfg.HealthGRPCAddr != "" {
		health = platformhealth.New(config.ServiceName, logger)
		shutdownMgr.Add("grpc_health", health.Shutdown)
	}

	ok = true
	return &App{
		logger:      logger,
		httpServer:  httpServer,
		health:      health,
		healthAddr:  cfg.HealthGRPCAddr,
		shutdownMgr: shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	if a.health != nil {
		if err := a.health.Start(a.healthAddr); err != nil {
			return err
		}
	}

	a.logger.Info("Starting User service", zap.String("addr", a.httpServer.Addr))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	if a.health != nil {
		a.health.SetServing()
	}

	err := a.shutdownMgr.Wait(ctx)

	a.wg.Wait()
	a.logger.Info("User service stopped")
	return err
}
