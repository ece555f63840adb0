package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/grpc"
	healthhttp "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/httpclient"
	platformkafka "github.com/shestoi/adminpanel/platform/kafka"
	platformlogging "github.com/shestoi/adminpanel/platform/logging"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
	platformpostgres "github.com/shestoi/adminpanel/platform/postgres"
	platformshutdown "github.com/shestoi/adminpanel/platform/shutdown"
	httpapi "github.com/shestoi/adminpanel/services/payment/internal/api/http"
	orderclient "github.com/shestoi/adminpanel/services/payment/internal/client/httpclient"
	"github.com/shestoi/adminpanel/services/payment/internal/config"
	eventkafka "github.com/shestoi/adminpanel/services/payment/internal/event/kafka"
	"github.com/shestoi/adminpanel/services/payment/internal/repository"
	"github.com/shestoi/adminpanel/services/payment/internal/repository/memory"
	"github.com/shestoi/adminpanel/services/payment/internal/repository/postgres"
	redisrepo "github.com/shestoi/adminpanel/services/payment/internal/repository/redis"
	"github.com/shestoi/adminpanel/services/payment/internal/service"
	"github.com/shestoi/adminpanel/services/payment/migrations"
)

// App содержит все зависимости для запуска и корректного shutdown Payment Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	health      *platformhealth.Server
	healthAddr  string
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Payment Service
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := platformlogging.New(platformlogging.FromEnv(config.ServiceName, string(cfg.AppEnv)))
	if err != nil {
		return nil, err
	}
	logger.Info("Building Payment service", cfg.Fields()...)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	// при ошибке сборки освобождаем то, что уже успели открыть
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

	var repo repository.PaymentRepository
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory payment storage")
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

	var idem service.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		shutdownMgr.Add("redis", platformshutdown.Closer(rdb))
		// Redis только ускоряет повтор, поэтому в readiness не участвует
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.IdempotencyTTL, logger)
	} else {
		idem = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}

	var publisher service.EventPublisher = service.NoopPublisher{}
	if cfg.Kafka.Enabled {
		writer := platformkafka.NewWriter(cfg.Kafka, cfg.EventsTopic)
		shutdownMgr.Add("kafka_writer", platformshutdown.Closer(writer))
		publisher = eventkafka.NewPaymentEventPublisher(logger, writer, cfg.EventsTopic)
		logger.Info("payment events enabled", zap.String("topic", cfg.EventsTopic))
	}

	orders := orderclient.NewOrderClientAdapter(
		httpclient.New("order", cfg.OrderServiceURL, cfg.UpstreamTimeout),
		orderclient.LookupMode(cfg.OrderLookupMode),
	)

	reg := metrics.New(config.ServiceName)
	paymentMetrics := service.NewMetrics()
	reg.MustRegister(paymentMetrics.Collectors()...)

	paymentService := service.NewPaymentService(repo, orders, idem, publisher, paymentMetrics, logger)
	handler := httpapi.NewHandler(paymentService, logger)
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

	a.logger.Info("Starting Payment service", zap.String("addr", a.httpServer.Addr))

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
	a.logger.Info("Payment service stopped")
	return err
}
