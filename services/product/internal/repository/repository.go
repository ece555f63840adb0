package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shestoi/adminpanel/platform/apperr"
)

// Product товар каталога. Price - цена за единицу в целых единицах валюты.
type Product struct {
	ID        int64
	Name      string
	Price     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProductRepository --dir=. --output=./mocks --outpkg=mocks

// ProductRepository определяет интерфейс для работы с каталогом товаров
// Service слой зависит от этого интерфейса, а не от конкретной реализации
type ProductRepository interface {
	// List все товары в порядке id
	List(ctx context.Context) ([]Product, error)

	// Get возвращает ErrNotFound, если товара нет
	Get(ctx context.Context, id int64) (Product, error)

	// CreateMany присваивает id из общего счётчика и сохраняет товары
	CreateMany(ctx context.Context, products []Product) ([]Product, error)

	// Update меняет name и price, ErrNotFound если товара нет
	Update(ctx context.Context, p Product) (Product, error)

	// Delete возвращает ErrNotFound, если товара нет
	Delete(ctx context.Context, id int64) error
}

// ErrNotFound возвращается, когда товар не найден в хранилище
var ErrNotFound = fmt.Errorf("Product %w", apperr.ErrNotFound)
