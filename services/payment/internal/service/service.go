package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/payment/internal/event"
	"github.com/shestoi/adminpanel/services/payment/internal/repository"
)

var (
	// ErrOrderCheckFailed order service не смог подтвердить заказ (недоступен, таймаут, отказ).
	// Создание платежа в этом случае отклоняется, повторов нет.
	ErrOrderCheckFailed = errors.New("failed to validate order")
	// ErrInvalidOrder заказ не найден в order service
	ErrInvalidOrder = fmt.Errorf("order id is not valid: %w", apperr.ErrNotFound)
	// ErrIdempotencyConflict ключ уже использован для платежа с другими данными
	ErrIdempotencyConflict = fmt.Errorf("idempotency key reused with different payload: %w", apperr.ErrAlreadyExists)
)

// PaymentService бизнес-логика платежей: валидация, проверка заказа, идемпотентность
type PaymentService struct {
	repo      repository.PaymentRepository
	orders    OrderClient
	idem      IdempotencyStore
	publisher EventPublisher
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(
	repo repository.PaymentRepository,
	orders OrderClient,
	idem IdempotencyStore,
	publisher EventPublisher,
	metrics *Metrics,
	logger *zap.Logger,
) *PaymentService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &PaymentService{
		repo:      repo,
		orders:    orders,
		idem:      idem,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// CreatePaymentInput входные данные создания платежа.
// Status принимается как есть от вызывающей стороны.
type CreatePaymentInput struct {
	OrderID        int64
	Amount         int64
	Status         string
	IdempotencyKey string
}

// CreatePaymentOutput результат. Replayed = true, если платёж уже был создан по этому ключу.
type CreatePaymentOutput struct {
	Payment  repository.Payment
	Replayed bool
}

func validatePayment(orderID, amount int64, status string) error {
	if orderID <= 0 {
		return apperr.Validation("order_id", "must be a positive integer")
	}
	if amount < 0 {
		return apperr.Validation("amount", "must be a non-negative integer")
	}
	if status != repository.StatusPending && status != repository.StatusPaid {
		return apperr.Validation("status", "must be one of: pending, paid")
	}
	return nil
}

// CreatePayment создаёт платёж после проверки, что заказ существует.
// Порядок: валидация -> повтор по Idempotency-Key -> проверка заказа -> запись -> событие.
func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentOutput, error) {
	log := observability.L(ctx, s.logger).With(
		zap.Int64("order_id", in.OrderID),
		zap.Int64("amount", in.Amount),
		zap.String("status", in.Status),
	)

	if err := validatePayment(in.OrderID, in.Amount, in.Status); err != nil {
		s.metrics.outcome("invalid")
		return nil, err
	}

	if in.IdempotencyKey != "" {
		existing, found, err := s.findByKey(ctx, in.IdempotencyKey)
		if err != nil {
			s.metrics.outcome("error")
			return nil, err
		}
		if found {
			if existing.OrderID != in.OrderID || existing.Amount != in.Amount || existing.Status != in.Status {
				s.metrics.outcome("conflict")
				return nil, ErrIdempotencyConflict
			}
			log.Info("payment replayed by idempotency key",
				zap.String("idempotency_key", in.IdempotencyKey),
				zap.Int64("payment_id", existing.ID))
			s.metrics.outcome("replayed")
			return &CreatePaymentOutput{Payment: existing, Replayed: true}, nil
		}
	}

	exists, err := s.orders.OrderExists(ctx, in.OrderID)
	if err != nil {
		log.Warn("order validation failed, payment rejected", zap.Error(err))
		s.metrics.outcome("order_check_failed")
		return nil, fmt.Errorf("%w: %w", ErrOrderCheckFailed, err)
	}
	if !exists {
		s.metrics.outcome("order_not_found")
		return nil, fmt.Errorf("order %d: %w", in.OrderID, ErrInvalidOrder)
	}

	created, err := s.repo.Create(ctx, repository.Payment{
		OrderID:        in.OrderID,
		Amount:         in.Amount,
		Status:         in.Status,
		IdempotencyKey: in.IdempotencyKey,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		// параллельный запрос с тем же ключом успел раньше
		existing, getErr := s.repo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if getErr != nil {
			s.metrics.outcome("error")
			return nil, fmt.Errorf("load payment by idempotency key: %w", getErr)
		}
		s.metrics.outcome("replayed")
		return &CreatePaymentOutput{Payment: existing, Replayed: true}, nil
	}
	if err != nil {
		s.metrics.outcome("error")
		return nil, fmt.Errorf("save payment: %w", err)
	}

	if in.IdempotencyKey != "" {
		if err := s.idem.Remember(ctx, in.IdempotencyKey, created.ID); err != nil {
			log.Warn("failed to remember idempotency key", zap.Error(err))
		}
	}

	recorded := event.PaymentRecorded{
		PaymentID:      created.ID,
		OrderID:        created.OrderID,
		Amount:         created.Amount,
		Status:         created.Status,
		IdempotencyKey: created.IdempotencyKey,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.publisher.PublishPaymentRecorded(ctx, recorded); err != nil {
		// событие вспомогательное: платёж уже записан
		log.Warn("failed to publish payment.recorded", zap.Error(err), zap.Int64("payment_id", created.ID))
	}

	log.Info("payment created", zap.Int64("payment_id", created.ID))
	s.metrics.outcome("created")
	return &CreatePaymentOutput{Payment: created}, nil
}

// findByKey сначала смотрит в кеш, затем в Postgres (кеш мог истечь или быть недоступен)
func (s *PaymentService) findByKey(ctx context.Context, key string) (repository.Payment, bool, error) {
	id, found, err := s.idem.Lookup(ctx, key)
	if err != nil {
		observability.L(ctx, s.logger).Warn("idempotency cache unavailable, falling back to database", zap.Error(err))
	}
	if err == nil && found {
		p, err := s.repo.Get(ctx, id)
		if err == nil {
			return p, true, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return repository.Payment{}, false, fmt.Errorf("load payment %d: %w", id, err)
		}
		// платёж удалён после записи ключа: ключ снова свободен
		return repository.Payment{}, false, nil
	}

	p, err := s.repo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Payment{}, false, nil
	}
	if err != nil {
		return repository.Payment{}, false, fmt.Errorf("load payment by idempotency key: %w", err)
	}
	if err := s.idem.Remember(ctx, key, p.ID); err != nil {
		observability.L(ctx, s.logger).Warn("failed to re-remember idempotency key", zap.Error(err))
	}
	return p, true, nil
}

// UpdatePaymentInput поля платежа для PUT. Заказ повторно не проверяется.
type UpdatePaymentInput struct {
	ID      int64
	OrderID int64
	Amount  int64
	Status  string
}

func (s *PaymentService) UpdatePayment(ctx context.Context, in UpdatePaymentInput) (repository.Payment, error) {
	if err := validatePayment(in.OrderID, in.Amount, in.Status); err != nil {
		return repository.Payment{}, err
	}
	p, err := s.repo.Update(ctx, repository.Payment{ID: in.ID, OrderID: in.OrderID, Amount: in.Amount, Status: in.Status})
	if err != nil {
		return repository.Payment{}, fmt.Errorf("update payment %d: %w", in.ID, err)
	}
	return p, nil
}

// DeletePayment удаляет платёж без проверки ссылок
func (s *PaymentService) DeletePayment(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (repository.Payment, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return repository.Payment{}, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context) ([]repository.Payment, error) {
	payments, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
