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
	platformlogging "github.com/shestoi/adminpanel/platform/logging"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
	platformshutdown "github.com/shestoi/adminpanel/platform/shutdown"
	httpapi "github.com/shestoi/adminpanel/services/reporting/internal/api/http"
	sourceclient "github.com/shestoi/adminpanel/services/reporting/internal/client/httpclient"
	"github.com/shestoi/adminpanel/services/reporting/internal/config"
	"github.com/shestoi/adminpanel/services/reporting/internal/service"
)

// App содержит все зависимости для запуска и корректного shutdown Reporting Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	health      *platformhealth.Server
	healthAddr  string
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Reporting Service
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := platformlogging.New(platformlogging.FromEnv(config.ServiceName, string(cfg.AppEnv)))
	if err != nil {
		return nil, err
	}
	logger.Info("Building Reporting service", cfg.Fields()...)

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

	users := sourceclient.NewUserClient(httpclient.New(service.SourceUser, cfg.UserServiceURL, cfg.UpstreamTimeout))
	products := sourceclient.NewProductClient(httpclient.New(service.SourceProduct, cfg.ProductServiceURL, cfg.UpstreamTimeout))
	orders := sourceclient.NewOrderClient(httpclient.New(service.SourceOrder, cfg.OrderServiceURL, cfg.UpstreamTimeout))
	payments := sourceclient.NewPaymentClient(httpclient.New(service.SourcePayment, cfg.PaymentServiceURL, cfg.UpstreamTimeout))

	reg := metrics.New(config.ServiceName)
	reportingService := service.NewReportingService(users, products, orders, payments, logger)
	reg.MustRegister(reportingService.Collectors()...)

	handler := httpapi.NewHandler(reportingService, logger)
	// своего хранилища нет: недоступность соседей видна в ответах, а не в readiness
	router := httpapi.NewRouter(handler, auth.NewVerifier(cfg.JWTSecret), map[string]healthhttp.Check{}, reg, logger)

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

	a.logger.Info("Starting Reporting service", zap.String("addr", a.httpServer.Addr))

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
	a.logger.Info("Reporting service stopped")
	return err
}
