package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/reporting/internal/ledger"
)

// Имена источников в списке unavailable
const (
	SourceUser    = "user"
	SourceProduct = "product"
	SourceOrder   = "order"
	SourcePayment = "payment"
)

var (
	ErrOrderNotFound   = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)
)

// ReportingService единая точка сверки: балансы, оплата, топ товаров и дашборд
// строятся из одних и тех же коллекций через пакет ledger.
type ReportingService struct {
	users    UserSource
	products ProductSource
	orders   OrderSource
	payments PaymentSource
	logger   *zap.Logger

	unavailable *prometheus.CounterVec
}

func NewReportingService(users UserSource, products ProductSource, orders OrderSource, payments PaymentSource, logger *zap.Logger) *ReportingService {
	return &ReportingService{
		users:    users,
		products: products,
		orders:   orders,
		payments: payments,
		logger:   logger,
		unavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporting_source_unavailable_total",
			Help: "Collaborator fetches that failed with an unavailable upstream, by service.",
		}, []string{"service"}),
	}
}

func (s *ReportingService) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.unavailable}
}

// snapshot коллекции, прочитанные для одного запроса
type snapshot struct {
	userCount   int
	products    []ledger.Product
	orders      []ledger.Order
	payments    []ledger.Payment
	unavailable []string
}

func (s snapshot) missing(name string) bool {
	for _, u := range s.unavailable {
		if u == name {
			return true
		}
	}
	return false
}

// ledgerComplete балансы считаются только по полному набору заказов, товаров и платежей
func (s snapshot) ledgerComplete() bool {
	return !s.missing(SourceOrder) && !s.missing(SourceProduct) && !s.missing(SourcePayment)
}

// fetch читает коллекции параллельно. Недоступный сервис попадает в unavailable,
// остальные ошибки (например 401 от соседа) прерывают запрос.
func (s *ReportingService) fetch(ctx context.Context, withUsers bool) (snapshot, error) {
	var (
		snap snapshot
		mu   sync.Mutex
	)
	log := observability.L(ctx, s.logger)

	skip := func(name string, err error) error {
		if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		log.Warn("collaborator unavailable", zap.String("service", name), zap.Error(err))
		s.unavailable.WithLabelValues(name).Inc()
		mu.Lock()
		snap.unavailable = append(snap.unavailable, name)
		mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if withUsers {
		g.Go(func() error {
			n, err := s.users.CountUsers(gctx)
			if err != nil {
				return skip(SourceUser, err)
			}
			snap.userCount = n
			return nil
		})
	}
	g.Go(func() error {
		products, err := s.products.ListProducts(gctx)
		if err != nil {
			return skip(SourceProduct, err)
		}
		snap.products = products
		return nil
	})
	g.Go(func() error {
		orders, err := s.orders.ListOrders(gctx)
		if err != nil {
			return skip(SourceOrder, err)
		}
		snap.orders = orders
		return nil
	})
	g.Go(func() error {
		payments, err := s.payments.ListPayments(gctx)
		if err != nil {
			return skip(SourcePayment, err)
		}
		snap.payments = payments
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	sort.Strings(snap.unavailable)
	if snap.unavailable == nil {
		snap.unavailable = []string{}
	}
	return snap, nil
}

// BalancesView ответ сверки. Balances пустой, если хотя бы один из источников сверки недоступен.
type BalancesView struct {
	Balances    []ledger.OrderBalance `json:"balances"`
	Unavailable []string              `json:"unavailable"`
}

func (s *ReportingService) balances(ctx context.Context, filter func([]ledger.OrderBalance) []ledger.OrderBalance) (BalancesView, error) {
	snap, err := s.fetch(ctx, false)
	if err != nil {
		return BalancesView{}, err
	}
	view := BalancesView{Balances: []ledger.OrderBalance{}, Unavailable: snap.unavailable}
	if !snap.ledgerComplete() {
		return view, nil
	}
	view.Balances = ledger.Reconcile(snap.orders, snap.products, snap.payments)
	if filter != nil {
		view.Balances = filter(view.Balances)
	}
	return view, nil
}

// Balances баланс каждого заказа
func (s *ReportingService) Balances(ctx context.Context) (BalancesView, error) {
	return s.balances(ctx, nil)
}

// Unpaid заказы с положительным остатком или без товара
func (s *ReportingService) Unpaid(ctx context.Context) (BalancesView, error) {
	return s.balances(ctx, ledger.UnpaidOrders)
}

// TopProductsView топ товаров по оплаченным заказам
type TopProductsView struct {
	Products    []ledger.ProductCount `json:"products"`
	Unavailable []string              `json:"unavailable"`
}

func (s *ReportingService) TopProducts(ctx context.Context, k int) (TopProductsView, error) {
	if k <= 0 {
		return TopProductsView{}, apperr.Validation("k", "must be a positive integer")
	}
	snap, err := s.fetch(ctx, false)
	if err != nil {
		return TopProductsView{}, err
	}
	view := TopProductsView{Products: []ledger.ProductCount{}, Unavailable: snap.unavailable}
	if snap.ledgerComplete() {
		view.Products = ledger.TopPaidProducts(snap.products, snap.orders, snap.payments, k)
	}
	return view, nil
}

// DashboardView дашборд и список недоступных сервисов.
// Счётчики недоступного сервиса равны 0, агрегаты сверки пустые без полного набора данных.
type DashboardView struct {
	ledger.Dashboard
	Unavailable []string `json:"unavailable"`
}

func (s *ReportingService) Dashboard(ctx context.Context) (DashboardView, error) {
	snap, err := s.fetch(ctx, true)
	if err != nil {
		return DashboardView{}, err
	}
	d := ledger.Summarize(snap.userCount, snap.products, snap.orders, snap.payments)
	if !snap.ledgerComplete() {
		d.TopProducts = []ledger.ProductCount{}
		d.UnpaidOrders = 0
	}
	return DashboardView{Dashboard: d, Unavailable: snap.unavailable}, nil
}

// PayInput ручная оплата заказа
type PayInput struct {
	OrderID        int64
	Amount         int64
	IdempotencyKey string
}

// PayResult созданный платёж и остаток до оплаты
type PayResult struct {
	Payment   ledger.Payment `json:"payment"`
	Remaining int64          `json:"remaining_before"`
}

// Pay пересчитывает остаток по свежим данным, выводит статус и отправляет
// платёж ровно на внесённую сумму.
func (s *ReportingService) Pay(ctx context.Context, in PayInput) (PayResult, error) {
	if in.Amount < 0 {
		return PayResult{}, apperr.Validation("amount", "must not be negative")
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return PayResult{}, ErrOrderNotFound
		}
		return PayResult{}, err
	}
	product, err := s.products.GetProduct(ctx, order.ProductID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return PayResult{}, ErrProductNotFound
		}
		return PayResult{}, err
	}
	payments, err := s.payments.ListPayments(ctx)
	if err != nil {
		return PayResult{}, err
	}

	balance := ledger.Reconcile([]ledger.Order{order}, []ledger.Product{product}, payments)[0]
	status := ledger.ManualPaymentStatus(in.Amount, balance.Remaining)

	payment, err := s.payments.CreatePayment(ctx, ledger.PaymentRequest{
		OrderID:        order.ID,
		Amount:         in.Amount,
		Status:         status,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return PayResult{}, err
	}

	observability.L(ctx, s.logger).Info("manual payment submitted",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.Int64("amount", in.Amount),
		zap.Int64("remaining", balance.Remaining),
		zap.String("status", status))
	return PayResult{Payment: payment, Remaining: balance.Remaining}, nil
}
