// Package saga - фоновый reconciler зависших заказов.
// Заказ, остановившийся до linked (сервис был недоступен или процесс упал посреди цепочки),
// продолжается с сохранённого состояния. Повторный POST /payments идёт с тем же payment_key,
// поэтому payment service не создаст второй платёж.
package saga

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	"github.com/shestoi/adminpanel/services/order/internal/repository"
	"github.com/shestoi/adminpanel/services/order/internal/service"
)

// StalledLister выборка зависших заказов
type StalledLister interface {
	ListStalled(ctx context.Context, f repository.StalledFilter) ([]repository.Order, error)
}

// Resumer продолжает цепочку заказа
type Resumer interface {
	Resume(ctx context.Context, o repository.Order) (repository.Order, error)
}

// TokenSource выдаёт токен, с которым reconciler ходит в product/payment
type TokenSource func() (string, error)

// IssuerTokenSource service token, подписанный общим JWT секретом
func IssuerTokenSource(issuer *auth.Issuer, serviceName string) TokenSource {
	return func() (string, error) { return issuer.ServiceToken(serviceName) }
}

type Config struct {
	Interval    time.Duration
	StallAfter  time.Duration
	MaxAttempts int
	BatchSize   int
}

// Reconciler периодически досылает зависшие заказы
type Reconciler struct {
	orders  StalledLister
	resumer Resumer
	token   TokenSource
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	runs *prometheus.CounterVec
}

func NewReconciler(orders StalledLister, resumer Resumer, token TokenSource, cfg Config, logger *zap.Logger) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reconciler{
		orders:  orders,
		resumer: resumer,
		token:   token,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_saga_resume_total",
			Help: "Stalled orders resumed by the reconciler, by outcome: linked, stalled, error.",
		}, []string{"outcome"}),
	}
}

func (r *Reconciler) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.runs}
}

// Start работает до отмены ctx
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("starting saga reconciler",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("stall_after", r.cfg.StallAfter),
		zap.Int("max_attempts", r.cfg.MaxAttempts),
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("saga reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("saga reconcile pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce один проход. Возвращает количество заказов, доведённых до linked.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	stalled, err := r.orders.ListStalled(ctx, repository.StalledFilter{
		UpdatedBefore:  r.now().Add(-r.cfg.StallAfter),
		MaxAttempts:    r.cfg.MaxAttempts,
		TerminalErrors: service.TerminalErrors,
		Limit:          r.cfg.BatchSize,
	})
	if err != nil {
		return 0, err
	}
	if len(stalled) == 0 {
		return 0, nil
	}

	token, err := r.token()
	if err != nil {
		return 0, err
	}
	ctx = auth.WithToken(ctx, token)

	linked := 0
	for _, o := range stalled {
		if ctx.Err() != nil {
			return linked, ctx.Err()
		}

		log := r.logger.With(
			zap.Int64("order_id", o.ID),
			zap.String("state", string(o.State)),
			zap.Int("attempts", o.Attempts),
		)

		resumed, err := r.resumer.Resume(ctx, o)
		var coordErr *service.CoordinationError
		switch {
		case err == nil:
			linked++
			r.runs.WithLabelValues("linked").Inc()
			log.Info("stalled order linked", zap.Int64p("payment_id", resumed.PaymentID))
		case errors.As(err, &coordErr):
			r.runs.WithLabelValues("stalled").Inc()
			log.Warn("stalled order still not linked",
				zap.String("reached_state", string(coordErr.Order.State)),
				zap.String("last_error", coordErr.Order.LastError))
		default:
			r.runs.WithLabelValues("error").Inc()
			log.Error("failed to resume order", zap.Error(err))
		}
	}
	return linked, nil
}
