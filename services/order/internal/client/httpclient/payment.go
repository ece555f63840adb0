package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shestoi/adminpanel/platform/httpclient"
	"github.com/shestoi/adminpanel/services/order/internal/client"
	"github.com/shestoi/adminpanel/services/order/internal/service"
)

// IdempotencyKeyHeader заголовок, по которому payment service дедуплицирует создание
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentClientAdapter адаптирует POST /payments к service.PaymentClient
type PaymentClientAdapter struct {
	client *httpclient.Client
}

func NewPaymentClientAdapter(c *httpclient.Client) service.PaymentClient {
	return &PaymentClientAdapter{client: c}
}

type createPaymentRequest struct {
	OrderID int64  `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

type paymentResponse struct {
	ID int64 `json:"id"`
}

func (a *PaymentClientAdapter) CreatePayment(ctx context.Context, req client.PaymentRequest) (int64, error) {
	var resp paymentResponse
	_, err := a.client.Do(ctx, http.MethodPost, "/payments",
		createPaymentRequest{OrderID: req.OrderID, Amount: req.Amount, Status: req.Status},
		&resp,
		httpclient.WithHeader(IdempotencyKeyHeader, req.IdempotencyKey))
	if err != nil {
		return 0, fmt.Errorf("create payment for order %d: %w", req.OrderID, err)
	}
	if resp.ID <= 0 {
		return 0, fmt.Errorf("create payment for order %d: response without id", req.OrderID)
	}
	return resp.ID, nil
}
