package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/httpjson"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/payment/internal/repository"
	"github.com/shestoi/adminpanel/services/payment/internal/service"
)

// IdempotencyKeyHeader заголовок, по которому ledger дедуплицирует создание платежа
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler HTTP-обработчики Payment Service
type Handler struct {
	payments *service.PaymentService
	logger   *zap.Logger
}

func NewHandler(payments *service.PaymentService, logger *zap.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

// PaymentRequest тело POST/PUT. Указатели отличают отсутствующее поле от нуля.
type PaymentRequest struct {
	OrderID *int64  `json:"order_id"`
	Amount  *int64  `json:"amount"`
	Status  *string `json:"status"`
}

// PaymentResponse платёж в API
type PaymentResponse struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"order_id"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Date           time.Time `json:"date"`
}

func toResponse(p repository.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		Status:         p.Status,
		IdempotencyKey: p.IdempotencyKey,
		Date:           p.CreatedAt,
	}
}

func (req PaymentRequest) fields() (orderID, amount int64, status string, err error) {
	if req.OrderID == nil {
		return 0, 0, "", apperr.Validation("order_id", "is required")
	}
	if req.Amount == nil {
		return 0, 0, "", apperr.Validation("amount", "is required")
	}
	if req.Status == nil {
		return 0, 0, "", apperr.Validation("status", "is required")
	}
	return *req.OrderID, *req.Amount, *req.Status, nil
}

// ListPayments GET /payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListPayments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toResponse(p))
	}
	httpjson.Write(w, http.StatusOK, resp)
}

// GetPayment GET /payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	p, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(p))
}

// CreatePayment POST /payments. 201 для нового платежа, 200 для повтора по Idempotency-Key.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	orderID, amount, status, err := req.fields()
	if err != nil {
		httpjson.Error(w, err)
		return
	}

	out, err := h.payments.CreatePayment(r.Context(), service.CreatePaymentInput{
		OrderID:        orderID,
		Amount:         amount,
		Status:         status,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	switch {
	case errors.Is(err, service.ErrOrderCheckFailed):
		httpjson.ErrorMessage(w, http.StatusBadRequest, "failed to validate order")
		return
	case errors.Is(err, service.ErrInvalidOrder):
		httpjson.ErrorMessage(w, http.StatusNotFound, "order id is not valid")
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	code := http.StatusCreated
	if out.Replayed {
		code = http.StatusOK
	}
	httpjson.Write(w, code, toResponse(out.Payment))
}

// UpdatePayment PUT /payments/{id}
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	var req PaymentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	orderID, amount, status, err := req.fields()
	if err != nil {
		httpjson.Error(w, err)
		return
	}

	p, err := h.payments.UpdatePayment(r.Context(), service.UpdatePaymentInput{
		ID:      id,
		OrderID: orderID,
		Amount:  amount,
		Status:  status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(p))
}

// DeletePayment DELETE /payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	if err := h.payments.DeletePayment(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"message": "deleted", "id": id})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		observability.L(r.Context(), h.logger).Error("payment request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpjson.Error(w, err)
}
