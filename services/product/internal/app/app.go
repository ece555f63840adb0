package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/grpc"
	healthhttp "github.com/shestoi/adminpanel/platform/health/http"
	platformlogging "github.com/shestoi/adminpanel/platform/logging"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
	platformshutdown "github.com/shestoi/adminpanel/platform/shutdown"
	httpapi "github.com/shestoi/adminpanel/services/product/internal/api/http"
	"github.com/shestoi/adminpanel/services/product/internal/config"
	"github.com/shestoi/adminpanel/services/product/internal/repository"
	"github.com/shestoi/adminpanel/services/product/internal/repository/memory"
	mongorepo "github.com/shestoi/adminpanel/services/product/internal/repository/mongo"
	"github.com/shestoi/adminpanel/services/product/internal/service"
)

// App содержит все зависимости для запуска и корректного shutdown Product Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	health      *platformhealth.Server
	healthAddr  string
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// connectMongo подключается и проверяет соединение ping
func connectMongo(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	logger.Info("Connecting to MongoDB")
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("MongoDB connection established")
	return client, nil
}

// Build создаёт и настраивает все зависимости Product Service
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := platformlogging.New(platformlogging.FromEnv(config.ServiceName, string(cfg.AppEnv)))
	if err != nil {
		return nil, err
	}
	logger.Info("Building Product service", cfg.Fields()...)

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

	var repo repository.ProductRepository
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory product storage")
		repo = memory.NewRepository()
	default:
		client, err := connectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, err
		}
		shutdownMgr.Add("mongo", platformshutdown.Mongo(client))
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

		repo, err = mongorepo.NewRepository(ctx, client.Database(cfg.MongoDBName))
		if err != nil {
			return nil, err
		}
	}

	productService := service.NewProductService(repo, logger)
	handler := httpapi.NewHandler(productService, logger)
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

	a.logger.Info("Starting Product service", zap.String("addr", a.httpServer.Addr))

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
	a.logger.Info("Product service stopped")
	return err
}
