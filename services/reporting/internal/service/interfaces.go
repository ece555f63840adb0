package service

import (
	"context"

	"github.com/shestoi/adminpanel/services/reporting/internal/ledger"
)

// Все источники возвращают apperr.ErrUpstreamUnavailable, если сервис не ответил,
// и ошибку с apperr.ErrNotFound для отсутствующей записи.

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=UserSource --dir=. --output=./mocks --outpkg=mocks

// UserSource user service, для дашборда нужно только количество
type UserSource interface {
	CountUsers(ctx context.Context) (int, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProductSource --dir=. --output=./mocks --outpkg=mocks

// ProductSource product service
type ProductSource interface {
	ListProducts(ctx context.Context) ([]ledger.Product, error)
	GetProduct(ctx context.Context, id int64) (ledger.Product, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderSource --dir=. --output=./mocks --outpkg=mocks

// OrderSource order service
type OrderSource interface {
	ListOrders(ctx context.Context) ([]ledger.Order, error)
	GetOrder(ctx context.Context, id int64) (ledger.Order, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentSource --dir=. --output=./mocks --outpkg=mocks

// PaymentSource payment service
type PaymentSource interface {
	ListPayments(ctx context.Context) ([]ledger.Payment, error)
	CreatePayment(ctx context.Context, req ledger.PaymentRequest) (ledger.Payment, error)
}
