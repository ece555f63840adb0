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
	"github.com/shestoi/adminpanel/platform/httpclient"
	platformkafka "github.com/shestoi/adminpanel/platform/kafka"
	platformlogging "github.com/shestoi/adminpanel/platform/logging"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
	platformpostgres "github.com/shestoi/adminpanel/platform/postgres"
	platformshutdown "github.com/shestoi/adminpanel/platform/shutdown"
	httpapi "github.com/shestoi/adminpanel/services/order/internal/api/http"
	clients "github.com/shestoi/adminpanel/services/order/internal/client/httpclient"
	"github.com/shestoi/adminpanel/services/order/internal/config"
	eventkafka "github.com/shestoi/adminpanel/services/order/internal/event/kafka"
	"github.com/shestoi/adminpanel/services/order/internal/repository"
	"github.com/shestoi/adminpanel/services/order/internal/repository/memory"
	"github.com/shestoi/adminpanel/services/order/internal/repository/postgres"
	"github.com/shestoi/adminpanel/services/order/internal/saga"
	"github.com/shestoi/adminpanel/services/order/internal/service"
	"github.com/shestoi/adminpanel/services/order/migrations"
)

// worker фоновый процесс, работающий до отмены контекста
type worker struct {
	name  string
	start func(ctx context.Context) error
}

// App содержит все зависимости для запуска и корректного shutdown Order Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	health      *platformhealth.Server
	healthAddr  string
	shutdownMgr *platformshutdown.Manager

	workers   []worker
	workerCtx context.Context
	workerWG  *sync.WaitGroup
	wg        sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Order Service
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := platformlogging.New(platformlogging.FromEnv(config.ServiceName, string(cfg.AppEnv)))
	if err != nil {
		return nil, err
	}
	logger.Info("Building Order service", cfg.Fields()...)

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

	var repo repository.OrderRepository
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory order storage")
		repo = memory.NewRepository(cfg.EventsTopic)
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
		repo = postgres.NewRepository(pool, cfg.EventsTopic)
	}

	products := clients.NewProductClientAdapter(httpclient.New("product", cfg.ProductServiceURL, cfg.UpstreamTimeout))
	payments := clients.NewPaymentClientAdapter(httpclient.New("payment", cfg.PaymentServiceURL, cfg.UpstreamTimeout))

	reg := metrics.New(config.ServiceName)
	orderMetrics := service.NewMetrics()
	reg.MustRegister(orderMetrics.Collectors()...)

	orderService := service.NewOrderService(repo, products, payments, service.FailureMode(cfg.FailureMode), orderMetrics, logger)

	var workers []worker

	if cfg.Saga.ReconcileInterval > 0 {
		reconciler := saga.NewReconciler(repo, orderService,
			saga.IssuerTokenSource(auth.NewIssuer(cfg.JWTSecret, time.Hour), config.ServiceName),
			saga.Config{
				Interval:    cfg.Saga.ReconcileInterval,
				StallAfter:  cfg.Saga.StallAfter,
				MaxAttempts: cfg.Saga.MaxAttempts,
				BatchSize:   50,
			},
			logger.Named("saga"))
		reg.MustRegister(reconciler.Collectors()...)
		workers = append(workers, worker{name: "saga_reconciler", start: reconciler.Start})
	}

	if cfg.Kafka.Enabled {
		// топик outbox события берётся из самой записи, у writer он пустой
		writer := platformkafka.NewWriter(cfg.Kafka, "")
		dispatcher := eventkafka.NewOutboxDispatcher(logger.Named("outbox"), repo, writer, eventkafka.DispatcherConfig{
			BatchSize:  cfg.Outbox.BatchSize,
			Interval:   cfg.Outbox.Interval,
			MaxRetries: cfg.Outbox.MaxRetries,
			Backoff:    cfg.Outbox.Backoff,
		})
		shutdownMgr.Add("outbox_dispatcher", platformshutdown.Closer(dispatcher))

		// DLQ пишет через writer dispatcher и не закрывает его сам
		var dlq eventkafka.DeadLetterSink
		if cfg.PaymentEventsDLQTopic != "" {
			dlq = eventkafka.NewDLQPublisher(logger.Named("dlq"), writer, cfg.PaymentEventsDLQTopic)
		}

		reader := platformkafka.NewReader(cfg.Kafka, cfg.PaymentEventsTopic, cfg.PaymentEventsGroup)
		consumer := eventkafka.NewPaymentRecordedConsumer(logger.Named("payment_events"), reader, orderService, dlq, 3, time.Second)
		shutdownMgr.Add("payment_events_consumer", platformshutdown.Closer(consumer))

		workers = append(workers,
			worker{name: "outbox_dispatcher", start: dispatcher.Start},
			worker{name: "payment_events_consumer", start: consumer.Start},
		)
		logger.Info("kafka enabled",
			zap.String("events_topic", cfg.EventsTopic),
			zap.String("payment_events_topic", cfg.PaymentEventsTopic))
	}

	// воркеры останавливаются раньше kafka клиентов и пула, но после HTTP сервера
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	workerWG := &sync.WaitGroup{}
	shutdownMgr.Add("workers", platformshutdown.Cancel(cancelWorkers, workerWG))

	handler := httpapi.NewHandler(orderService, logger)
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
		workers:     workers,
		workerCtx:   workerCtx,
		workerWG:    workerWG,
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

	for _, w := range a.workers {
		a.workerWG.Add(1)
		go func(w worker) {
			defer a.workerWG.Done()
			if err := w.start(a.workerCtx); err != nil {
				a.logger.Error("worker stopped with error", zap.String("worker", w.name), zap.Error(err))
			}
		}(w)
	}

	a.logger.Info("Starting Order service", zap.String("addr", a.httpServer.Addr), zap.Int("workers", len(a.workers)))

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
	a.logger.Info("Order service stopped")
	return err
}
