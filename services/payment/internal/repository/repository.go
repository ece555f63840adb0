package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shestoi/adminpanel/platform/apperr"
)

// Статусы платежа. Статус задаёт вызывающая сторона, хранилище его не пересчитывает.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// Payment доменная модель платежа.
// Несколько платежей могут ссылаться на один заказ (частичная оплата).
type Payment struct {
	ID      int64
	OrderID int64
	// Amount в целых единицах валюты
	Amount int64
	Status string
	// IdempotencyKey пустой для ручных платежей без ключа
	IdempotencyKey string
	CreatedAt      time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentRepository --dir=. --output=./mocks --outpkg=mocks

// PaymentRepository хранилище платежей
type PaymentRepository interface {
	// List все платежи в порядке id
	List(ctx context.Context) ([]Payment, error)
	// Get возвращает ErrNotFound, если платежа нет
	Get(ctx context.Context, id int64) (Payment, error)
	// GetByIdempotencyKey возвращает ErrNotFound, если ключ не встречался
	GetByIdempotencyKey(ctx context.Context, key string) (Payment, error)
	// Create присваивает id и created_at. Повтор ключа - ErrDuplicateKey.
	Create(ctx context.Context, p Payment) (Payment, error)
	// Update меняет order_id/amount/status, ErrNotFound если платежа нет
	Update(ctx context.Context, p Payment) (Payment, error)
	// Delete без проверки ссылок на заказы, ErrNotFound если платежа нет
	Delete(ctx context.Context, id int64) error
}

var (
	// ErrNotFound платёж не найден
	ErrNotFound = fmt.Errorf("payment %w", apperr.ErrNotFound)
	// ErrDuplicateKey платёж с таким idempotency key уже записан
	ErrDuplicateKey = errors.New("payment with this idempotency key already exists")
)
