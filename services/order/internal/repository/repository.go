package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shestoi/adminpanel/platform/apperr"
)

// State шаг координации заказа. Переходы только вперёд:
// created -> priced -> payment_requested -> linked.
type State string

const (
	StateCreated          State = "created"
	StatePriced           State = "priced"
	StatePaymentRequested State = "payment_requested"
	StateLinked           State = "linked"
)

var stateRank = map[State]int{
	StateCreated:          0,
	StatePriced:           1,
	StatePaymentRequested: 2,
	StateLinked:           3,
}

// Before true, если s раньше other в цепочке
func (s State) Before(other State) bool {
	return stateRank[s] < stateRank[other]
}

// Valid известное ли состояние
func (s State) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Order доменная модель заказа вместе с состоянием координации
type Order struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int64

	State State
	// Amount итог price*quantity на момент расчёта, nil до перехода в priced
	Amount *int64
	// PaymentKey детерминированный Idempotency-Key для POST /payments
	PaymentKey string
	PaymentID  *int64
	Attempts   int
	LastError  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentKey ключ идемпотентности платежа заказа: order-<id>-payment-<seq>
func PaymentKey(orderID int64, seq int) string {
	return fmt.Sprintf("order-%d-payment-%d", orderID, seq)
}

// Transition перевод заказа из From в To.
// Amount и PaymentID записываются, если не nil.
type Transition struct {
	OrderID   int64
	From      State
	To        State
	Amount    *int64
	PaymentID *int64
}

// StalledFilter условия выборки зависших заказов для reconciler
type StalledFilter struct {
	UpdatedBefore time.Time
	MaxAttempts   int
	// TerminalErrors заказы с таким last_error не повторяются
	TerminalErrors []string
	Limit         int
}

// Статусы outbox событий
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// Типы событий заказа
const (
	EventOrderCreated      = "order.created"
	EventOrderStateChanged = "order.state_changed"
)

// OutboxEvent событие, записанное в одной транзакции с изменением заказа
type OutboxEvent struct {
	EventID     string
	EventType   string
	AggregateID string
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderRepository --dir=. --output=./mocks --outpkg=mocks

// OrderRepository хранилище заказов и их outbox
type OrderRepository interface {
	List(ctx context.Context) ([]Order, error)
	// Get возвращает ErrNotFound, если заказа нет
	Get(ctx context.Context, id int64) (Order, error)
	GetByPaymentKey(ctx context.Context, key string) (Order, error)

	// Create сохраняет заказ в состоянии created, назначает payment_key и пишет order.created в outbox
	Create(ctx context.Context, o Order) (Order, error)
	// Update меняет только user_id/product_id/quantity
	Update(ctx context.Context, o Order) (Order, error)
	Delete(ctx context.Context, id int64) error

	// Apply выполняет переход, если заказ всё ещё в t.From, сбрасывает last_error и пишет
	// order.state_changed в outbox. ErrStaleState, если заказ уже в другом состоянии.
	Apply(ctx context.Context, t Transition) (Order, error)
	// RecordFailure увеличивает attempts и сохраняет last_error, состояние не меняется
	RecordFailure(ctx context.Context, id int64, lastError string) (Order, error)
	ListStalled(ctx context.Context, f StalledFilter) ([]Order, error)

	GetPendingOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxEventSent(ctx context.Context, eventID string) error
	MarkOutboxEventFailed(ctx context.Context, eventID, lastError string) error
	ResetOutboxEventPending(ctx context.Context, eventID string) error
}

var (
	// ErrNotFound заказ не найден
	ErrNotFound = fmt.Errorf("order %w", apperr.ErrNotFound)
	// ErrStaleState заказ уже продвинулся дальше (параллельный reconciler или consumer)
	ErrStaleState = errors.New("order state changed concurrently")
	// ErrOutboxEventNotFound событие outbox не найдено
	ErrOutboxEventNotFound = errors.New("outbox event not found")
)
