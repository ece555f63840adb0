package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/httpjson"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/order/internal/repository"
	"github.com/shestoi/adminpanel/services/order/internal/service"
)

// WarningHeader сообщает, что заказ сохранён, но платёж не создан (fail-open)
const WarningHeader = "X-Order-Warning"

// Handler HTTP-обработчики Order Service
type Handler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewHandler(orders *service.OrderService, logger *zap.Logger) *Handler {
	return &Handler{orders: orders, logger: logger}
}

// OrderRequest тело POST/PUT
type OrderRequest struct {
	UserID    *int64 `json:"user_id"`
	ProductID *int64 `json:"product_id"`
	Quantity  *int64 `json:"quantity"`
}

func (req OrderRequest) input() (service.OrderInput, error) {
	switch {
	case req.UserID == nil:
		return service.OrderInput{}, apperr.Validation("user_id", "is required")
	case req.ProductID == nil:
		return service.OrderInput{}, apperr.Validation("product_id", "is required")
	case req.Quantity == nil:
		return service.OrderInput{}, apperr.Validation("quantity", "is required")
	}
	return service.OrderInput{UserID: *req.UserID, ProductID: *req.ProductID, Quantity: *req.Quantity}, nil
}

// OrderResponse заказ в API вместе с состоянием координации
type OrderResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int64     `json:"quantity"`
	State      string    `json:"state"`
	Amount     *int64    `json:"amount"`
	PaymentKey string    `json:"payment_key"`
	PaymentID  *int64    `json:"payment_id"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toResponse(o repository.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		State:      string(o.State),
		Amount:     o.Amount,
		PaymentKey: o.PaymentKey,
		PaymentID:  o.PaymentID,
		LastError:  o.LastError,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

// ListOrders GET /orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toResponse(o))
	}
	httpjson.Write(w, http.StatusOK, resp)
}

// GetOrder GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(o))
}

// CreateOrder POST /orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpjson.Error(w, err)
		return
	}

	out, err := h.orders.CreateOrder(r.Context(), in)
	var coordErr *service.CoordinationError
	switch {
	case errors.As(err, &coordErr):
		writeCoordinationError(w, coordErr)
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	if out.Warning != "" {
		w.Header().Set(WarningHeader, out.Warning)
	}
	httpjson.Write(w, http.StatusCreated, toResponse(out.Order))
}

// writeCoordinationError fail-closed ответ: заказ уже сохранён, его id отдаётся вместе с ошибкой
func writeCoordinationError(w http.ResponseWriter, e *service.CoordinationError) {
	status := apperr.HTTPStatus(e.Err)
	if errors.Is(e.Err, service.ErrPaymentRejected) {
		status = http.StatusBadGateway
	}
	msg := e.Order.LastError
	if msg == "" {
		msg = e.Err.Error()
	}
	httpjson.Write(w, status, map[string]any{"error": msg, "order_id": e.Order.ID})
}

// UpdateOrder PUT /orders/{id}
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	var req OrderRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpjson.Error(w, err)
		return
	}

	o, err := h.orders.UpdateOrder(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(o))
}

// DeleteOrder DELETE /orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"message": "deleted", "id": id})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		observability.L(r.Context(), h.logger).Error("order request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpjson.Error(w, err)
}
