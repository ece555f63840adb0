package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/order/internal/client"
	"github.com/shestoi/adminpanel/services/order/internal/repository"
)

// FailureMode поведение CreateOrder, когда шаг после сохранения заказа не удался
type FailureMode string

const (
	// FailOpen заказ возвращается как созданный, проблема уходит в Warning
	FailOpen FailureMode = "open"
	// FailClosed вызывающий получает ошибку с id уже сохранённого заказа
	FailClosed FailureMode = "closed"
)

// Значения last_error
const (
	LastErrorProductNotFound    = "product not found"
	LastErrorProductUnavailable = "product service unavailable"
	LastErrorPaymentUnavailable = "payment service unavailable"
	LastErrorAmountOverflow     = "order amount overflows"
)

// TerminalErrors значения last_error, после которых сверка заказ не повторяет
var TerminalErrors = []string{LastErrorProductNotFound, LastErrorAmountOverflow}

const autoPaymentStatus = "pending"

var (
	// ErrProductNotFound товар заказа отсутствует в product service. Заказ не повторяется.
	ErrProductNotFound = fmt.Errorf("%s: %w", LastErrorProductNotFound, apperr.ErrNotFound)
	// ErrPaymentRejected payment service ответил 4xx на создание платежа
	ErrPaymentRejected = errors.New("payment rejected")
	// ErrAmountOverflow price * quantity не помещается в int64
	ErrAmountOverflow = apperr.Validation("quantity", LastErrorAmountOverflow)
)

// CoordinationError заказ сохранён, но цепочка остановилась на Order.State
type CoordinationError struct {
	Order repository.Order
	Err   error
}

func (e *CoordinationError) Error() string { return e.Err.Error() }

func (e *CoordinationError) Unwrap() error { return e.Err }

// OrderService Order Store + координация created -> priced -> payment_requested -> linked
type OrderService struct {
	repo     repository.OrderRepository
	products ProductClient
	payments PaymentClient
	mode     FailureMode
	metrics  *Metrics
	logger   *zap.Logger
}

func NewOrderService(
	repo repository.OrderRepository,
	products ProductClient,
	payments PaymentClient,
	mode FailureMode,
	metrics *Metrics,
	logger *zap.Logger,
) *OrderService {
	if mode == "" {
		mode = FailOpen
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &OrderService{
		repo:     repo,
		products: products,
		payments: payments,
		mode:     mode,
		metrics:  metrics,
		logger:   logger,
	}
}

// OrderInput поля, которые задаёт клиент
type OrderInput struct {
	UserID    int64
	ProductID int64
	Quantity  int64
}

func (in OrderInput) validate() error {
	if in.UserID <= 0 {
		return apperr.Validation("user_id", "must be a positive integer")
	}
	if in.ProductID <= 0 {
		return apperr.Validation("product_id", "must be a positive integer")
	}
	if in.Quantity <= 0 {
		return apperr.Validation("quantity", "must be a positive integer")
	}
	return nil
}

// CreateOrderOutput результат. Warning не пустой, если цепочка не дошла до linked (только FailOpen).
type CreateOrderOutput struct {
	Order   repository.Order
	Warning string
}

// CreateOrder сохраняет заказ и сразу ведёт его по цепочке.
// Сохранённый заказ не откатывается ни при каком исходе следующих шагов.
func (s *OrderService) CreateOrder(ctx context.Context, in OrderInput) (*CreateOrderOutput, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, repository.Order{
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	log := observability.L(ctx, s.logger).With(zap.Int64("order_id", created.ID))
	log.Info("order created",
		zap.Int64("user_id", created.UserID),
		zap.Int64("product_id", created.ProductID),
		zap.Int64("quantity", created.Quantity))

	order, err := s.drive(ctx, created, "create")
	var coordErr *CoordinationError
	if err == nil {
		return &CreateOrderOutput{Order: order}, nil
	}
	if !errors.As(err, &coordErr) || s.mode == FailClosed {
		return nil, err
	}
	log.Warn("order persisted without payment",
		zap.String("state", string(coordErr.Order.State)), zap.Error(coordErr.Err))
	return &CreateOrderOutput{Order: coordErr.Order, Warning: coordErr.Order.LastError}, nil
}

// Resume продолжает цепочку с сохранённого состояния. Используется reconciler.
func (s *OrderService) Resume(ctx context.Context, o repository.Order) (repository.Order, error) {
	return s.drive(ctx, o, "resume")
}

// drive выполняет оставшиеся шаги. Остановка на шаге с записанным last_error возвращается
// как *CoordinationError, остальные ошибки - от хранилища.
func (s *OrderService) drive(ctx context.Context, o repository.Order, trigger string) (repository.Order, error) {
	log := observability.L(ctx, s.logger).With(zap.Int64("order_id", o.ID))

	for {
		var (
			next repository.Transition
			err  error
		)

		switch o.State {
		case repository.StateLinked:
			s.metrics.coordination.WithLabelValues(trigger, "linked").Inc()
			return o, nil

		case repository.StateCreated:
			product, lookupErr := s.products.GetProduct(ctx, o.ProductID)
			if lookupErr != nil {
				return s.fail(ctx, o, trigger, classifyProductError(lookupErr))
			}
			amount, ok := orderAmount(product.Price, o.Quantity)
			if !ok {
				return s.fail(ctx, o, trigger, stepFailure{lastError: LastErrorAmountOverflow, outcome: "amount_overflow", err: ErrAmountOverflow})
			}
			log.Debug("order priced", zap.Int64("price", product.Price), zap.Int64("amount", amount))
			next = repository.Transition{OrderID: o.ID, From: o.State, To: repository.StatePriced, Amount: &amount}

		case repository.StatePriced:
			next = repository.Transition{OrderID: o.ID, From: o.State, To: repository.StatePaymentRequested}

		case repository.StatePaymentRequested:
			if o.Amount == nil {
				return o, fmt.Errorf("order %d in %s without amount", o.ID, o.State)
			}
			paymentID, payErr := s.payments.CreatePayment(ctx, client.PaymentRequest{
				OrderID:        o.ID,
				Amount:         *o.Amount,
				Status:         autoPaymentStatus,
				IdempotencyKey: o.PaymentKey,
			})
			if payErr != nil {
				return s.fail(ctx, o, trigger, classifyPaymentError(payErr))
			}
			log.Info("payment requested", zap.Int64("payment_id", paymentID), zap.Int64("amount", *o.Amount))
			next = repository.Transition{OrderID: o.ID, From: o.State, To: repository.StateLinked, PaymentID: &paymentID}

		default:
			return o, fmt.Errorf("order %d has unknown state %q", o.ID, o.State)
		}

		o, err = s.advance(ctx, next)
		if err != nil {
			s.metrics.coordination.WithLabelValues(trigger, "error").Inc()
			return o, err
		}
	}
}

// advance применяет переход. Если заказ уже продвинул кто-то другой, перечитывает его
// и цепочка продолжается с актуального состояния.
func (s *OrderService) advance(ctx context.Context, t repository.Transition) (repository.Order, error) {
	o, err := s.repo.Apply(ctx, t)
	if errors.Is(err, repository.ErrStaleState) {
		observability.L(ctx, s.logger).Debug("order advanced concurrently",
			zap.Int64("order_id", t.OrderID), zap.String("expected", string(t.From)))
		return s.repo.Get(ctx, t.OrderID)
	}
	if err != nil {
		return repository.Order{}, fmt.Errorf("apply %s -> %s: %w", t.From, t.To, err)
	}
	return o, nil
}

// stepFailure классифицированная ошибка шага
type stepFailure struct {
	lastError string
	outcome   string
	err       error
}

// orderAmount price * quantity с проверкой переполнения
func orderAmount(price, quantity int64) (int64, bool) {
	if price < 0 || quantity < 0 {
		return 0, false
	}
	if quantity != 0 && price > math.MaxInt64/quantity {
		return 0, false
	}
	return price * quantity, true
}

func classifyProductError(err error) stepFailure {
	if errors.Is(err, apperr.ErrNotFound) {
		return stepFailure{lastError: LastErrorProductNotFound, outcome: "product_not_found", err: ErrProductNotFound}
	}
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		err = apperr.Upstream("product", err)
	}
	return stepFailure{lastError: LastErrorProductUnavailable, outcome: "product_unavailable", err: err}
}

func classifyPaymentError(err error) stepFailure {
	var remote *apperr.RemoteError
	if errors.As(err, &remote) {
		return stepFailure{
			lastError: "payment rejected: " + remote.Message,
			outcome:   "payment_rejected",
			err:       fmt.Errorf("%w: %w", ErrPaymentRejected, err),
		}
	}
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		err = apperr.Upstream("payment", err)
	}
	return stepFailure{lastError: LastErrorPaymentUnavailable, outcome: "payment_unavailable", err: err}
}

func (s *OrderService) fail(ctx context.Context, o repository.Order, trigger string, f stepFailure) (repository.Order, error) {
	s.metrics.coordination.WithLabelValues(trigger, f.outcome).Inc()

	updated, err := s.repo.RecordFailure(ctx, o.ID, f.lastError)
	if err != nil {
		observability.L(ctx, s.logger).Error("failed to record coordination failure",
			zap.Int64("order_id", o.ID), zap.String("last_error", f.lastError), zap.Error(err))
		updated = o
		updated.LastError = f.lastError
	}
	return updated, &CoordinationError{Order: updated, Err: f.err}
}

// LinkPayment связывает заказ с платежом из события payment.recorded.
// Связывается только заказ в payment_requested с совпадающим payment_key.
func (s *OrderService) LinkPayment(ctx context.Context, paymentKey string, paymentID int64) (bool, error) {
	o, err := s.repo.GetByPaymentKey(ctx, paymentKey)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.links.WithLabelValues("skipped").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get order by payment key: %w", err)
	}
	if o.State != repository.StatePaymentRequested {
		s.metrics.links.WithLabelValues("skipped").Inc()
		return false, nil
	}

	_, err = s.repo.Apply(ctx, repository.Transition{
		OrderID:   o.ID,
		From:      repository.StatePaymentRequested,
		To:        repository.StateLinked,
		PaymentID: &paymentID,
	})
	if errors.Is(err, repository.ErrStaleState) {
		s.metrics.links.WithLabelValues("skipped").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("link payment: %w", err)
	}

	observability.L(ctx, s.logger).Info("order linked from payment event",
		zap.Int64("order_id", o.ID), zap.Int64("payment_id", paymentID))
	s.metrics.links.WithLabelValues("linked").Inc()
	return true, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]repository.Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (repository.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return repository.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// UpdateOrder меняет user/product/quantity. Сумма не пересчитывается, платежи не трогаются.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, in OrderInput) (repository.Order, error) {
	if err := in.validate(); err != nil {
		return repository.Order{}, err
	}
	o, err := s.repo.Update(ctx, repository.Order{
		ID:        id,
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
	})
	if err != nil {
		return repository.Order{}, fmt.Errorf("update order %d: %w", id, err)
	}
	return o, nil
}

// DeleteOrder удаляет заказ без каскада на платежи
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	return nil
}
