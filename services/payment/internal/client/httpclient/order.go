package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/httpclient"
	"github.com/shestoi/adminpanel/services/payment/internal/service"
)

// LookupMode способ проверки заказа
type LookupMode string

const (
	// LookupPoint - GET /orders/{id}
	LookupPoint LookupMode = "point"
	// LookupScan - GET /orders и поиск по id
	LookupScan LookupMode = "scan"
)

// OrderClientAdapter адаптирует HTTP API order service к service.OrderClient
type OrderClientAdapter struct {
	client *httpclient.Client
	mode   LookupMode
}

func NewOrderClientAdapter(client *httpclient.Client, mode LookupMode) service.OrderClient {
	if mode == "" {
		mode = LookupPoint
	}
	return &OrderClientAdapter{client: client, mode: mode}
}

type orderRef struct {
	ID int64 `json:"id"`
}

// OrderExists возвращает (false, nil) только если order service явно ответил, что заказа нет.
// Любой другой сбой - ошибка, платёж в этом случае не создаётся.
func (a *OrderClientAdapter) OrderExists(ctx context.Context, orderID int64) (bool, error) {
	if a.mode == LookupScan {
		return a.scan(ctx, orderID)
	}

	var ref orderRef
	_, err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &ref)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return ref.ID == orderID, nil
}

func (a *OrderClientAdapter) scan(ctx context.Context, orderID int64) (bool, error) {
	var refs []orderRef
	if _, err := a.client.Do(ctx, http.MethodGet, "/orders", nil, &refs); err != nil {
		return false, fmt.Errorf("list orders: %w", err)
	}
	for _, ref := range refs {
		if ref.ID == orderID {
			return true, nil
		}
	}
	return false, nil
}
