package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shestoi/adminpanel/platform/httpclient"
	"github.com/shestoi/adminpanel/services/reporting/internal/ledger"
)

// IdempotencyKeyHeader заголовок дедупликации, который понимает payment service
const IdempotencyKeyHeader = "Idempotency-Key"

// UserClient читает GET /users
type UserClient struct {
	client *httpclient.Client
}

func NewUserClient(c *httpclient.Client) *UserClient {
	return &UserClient{client: c}
}

func (c *UserClient) CountUsers(ctx context.Context) (int, error) {
	var users []struct {
		ID int64 `json:"id"`
	}
	if _, err := c.client.Do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	return len(users), nil
}

// ProductClient читает каталог
type ProductClient struct {
	client *httpclient.Client
}

func NewProductClient(c *httpclient.Client) *ProductClient {
	return &ProductClient{client: c}
}

func (c *ProductClient) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	products := make([]ledger.Product, 0)
	if _, err := c.client.Do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (c *ProductClient) GetProduct(ctx context.Context, id int64) (ledger.Product, error) {
	var p ledger.Product
	if _, err := c.client.Do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, &p); err != nil {
		return ledger.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// OrderClient читает заказы
type OrderClient struct {
	client *httpclient.Client
}

func NewOrderClient(c *httpclient.Client) *OrderClient {
	return &OrderClient{client: c}
}

func (c *OrderClient) ListOrders(ctx context.Context) ([]ledger.Order, error) {
	orders := make([]ledger.Order, 0)
	if _, err := c.client.Do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, id int64) (ledger.Order, error) {
	var o ledger.Order
	if _, err := c.client.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &o); err != nil {
		return ledger.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// PaymentClient читает и создаёт платежи
type PaymentClient struct {
	client *httpclient.Client
}

func NewPaymentClient(c *httpclient.Client) *PaymentClient {
	return &PaymentClient{client: c}
}

func (c *PaymentClient) ListPayments(ctx context.Context) ([]ledger.Payment, error) {
	payments := make([]ledger.Payment, 0)
	if _, err := c.client.Do(ctx, http.MethodGet, "/payments", nil, &payments); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// CreatePayment POST /payments. Повтор с тем же ключом возвращает ранее созданный платёж.
func (c *PaymentClient) CreatePayment(ctx context.Context, req ledger.PaymentRequest) (ledger.Payment, error) {
	var p ledger.Payment
	_, err := c.client.Do(ctx, http.MethodPost, "/payments", req, &p,
		httpclient.WithHeader(IdempotencyKeyHeader, req.IdempotencyKey))
	if err != nil {
		return ledger.Payment{}, fmt.Errorf("create payment for order %d: %w", req.OrderID, err)
	}
	return p, nil
}
