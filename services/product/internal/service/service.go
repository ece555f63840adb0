package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/product/internal/repository"
)

// ProductService каталог товаров и источник цены для order service
type ProductService struct {
	repo   repository.ProductRepository
	logger *zap.Logger
}

// NewProductService создаёт новый экземпляр ProductService
func NewProductService(repo repository.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		logger: logger,
	}
}

// ProductInput поля товара от клиента. Price nil - цена не передана или не целое число.
type ProductInput struct {
	Name  string
	Price *int64
}

func (in ProductInput) validate() (string, int64, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", 0, apperr.Validation("name", "is required")
	}
	if in.Price == nil {
		return "", 0, apperr.Validation("price", "must be an integer")
	}
	if *in.Price < 0 {
		return "", 0, apperr.Validation("price", "must not be negative")
	}
	return name, *in.Price, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]repository.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct точечный запрос цены. Отсутствующий товар - ErrNotFound.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (repository.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			observability.L(ctx, s.logger).Debug("product not found", zap.Int64("product_id", id))
			return repository.Product{}, err
		}
		return repository.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// CreateProducts сохраняет валидные элементы пачки, невалидные пропускаются с предупреждением.
// Пачка без валидных элементов даёт пустой результат, а не ошибку.
func (s *ProductService) CreateProducts(ctx context.Context, inputs []ProductInput) ([]repository.Product, error) {
	log := observability.L(ctx, s.logger)

	valid := make([]repository.Product, 0, len(inputs))
	for i, in := range inputs {
		name, price, err := in.validate()
		if err != nil {
			log.Warn("invalid product data skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		valid = append(valid, repository.Product{Name: name, Price: price})
	}
	if len(valid) == 0 {
		return []repository.Product{}, nil
	}

	created, err := s.repo.CreateMany(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("create products: %w", err)
	}
	log.Info("products created", zap.Int("created", len(created)), zap.Int("skipped", len(inputs)-len(created)))
	return created, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (repository.Product, error) {
	name, price, err := in.validate()
	if err != nil {
		return repository.Product{}, err
	}
	p, err := s.repo.Update(ctx, repository.Product{ID: id, Name: name, Price: price})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Product{}, err
		}
		return repository.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	observability.L(ctx, s.logger).Info("product updated", zap.Int64("product_id", id), zap.Int64("price", price))
	return p, nil
}

// DeleteProduct не проверяет заказы, ссылающиеся на товар
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}
