package service

import (
	"context"

	"github.com/shestoi/adminpanel/services/order/internal/client"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProductClient --dir=. --output=./mocks --outpkg=mocks

// ProductClient определяет интерфейс для работы с Product сервисом.
// Отсутствующий товар - ошибка, для которой errors.Is(err, apperr.ErrNotFound).
type ProductClient interface {
	GetProduct(ctx context.Context, productID int64) (client.Product, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentClient --dir=. --output=./mocks --outpkg=mocks

// PaymentClient определяет интерфейс для работы с Payment сервисом.
// Возвращает id созданного (или ранее созданного по тому же ключу) платежа.
type PaymentClient interface {
	CreatePayment(ctx context.Context, req client.PaymentRequest) (int64, error)
}
