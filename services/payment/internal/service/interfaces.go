package service

import (
	"context"

	"github.com/shestoi/adminpanel/services/payment/internal/event"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderClient --dir=. --output=./mocks --outpkg=mocks

// OrderClient проверяет существование заказа в order service.
// Ошибка означает, что проверить не удалось (сервис недоступен, таймаут, отказ).
type OrderClient interface {
	OrderExists(ctx context.Context, orderID int64) (bool, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=IdempotencyStore --dir=. --output=./mocks --outpkg=mocks

// IdempotencyStore быстрый кеш Idempotency-Key -> id платежа
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (paymentID int64, found bool, err error)
	Remember(ctx context.Context, key string, paymentID int64) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventPublisher --dir=. --output=./mocks --outpkg=mocks

// EventPublisher публикует события платежей
type EventPublisher interface {
	PublishPaymentRecorded(ctx context.Context, e event.PaymentRecorded) error
}

// NoopPublisher используется при KAFKA_ENABLED=false
type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentRecorded(context.Context, event.PaymentRecorded) error { return nil }
