package httpapi

import (
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/httpjson"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/reporting/internal/ledger"
	"github.com/shestoi/adminpanel/services/reporting/internal/service"
)

// IdempotencyKeyHeader пробрасывается в payment service без изменений
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler HTTP-обработчики Reporting Service
type Handler struct {
	reports *service.ReportingService
	logger  *zap.Logger
}

func NewHandler(reports *service.ReportingService, logger *zap.Logger) *Handler {
	return &Handler{reports: reports, logger: logger}
}

// PayRequest тело POST /ledger/orders/{id}/pay
type PayRequest struct {
	Amount *int64 `json:"amount"`
}

// Balances GET /ledger/balances
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	view, err := h.reports.Balances(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.warnUnavailable(r, view.Unavailable)
	httpjson.Write(w, http.StatusOK, view)
}

// Unpaid GET /ledger/unpaid
func (h *Handler) Unpaid(w http.ResponseWriter, r *http.Request) {
	view, err := h.reports.Unpaid(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.warnUnavailable(r, view.Unavailable)
	httpjson.Write(w, http.StatusOK, view)
}

// TopProducts GET /ledger/top-products?k=5
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	k := ledger.DashboardTopK
	if err := runtime.BindQueryParameter("form", true, false, "k", r.URL.Query(), &k); err != nil {
		httpjson.Error(w, apperr.Validation("k", "must be an integer"))
		return
	}
	view, err := h.reports.TopProducts(r.Context(), k)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.warnUnavailable(r, view.Unavailable)
	httpjson.Write(w, http.StatusOK, view)
}

// Dashboard GET /ledger/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.reports.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.warnUnavailable(r, view.Unavailable)
	httpjson.Write(w, http.StatusOK, view)
}

// Pay POST /ledger/orders/{id}/pay. 201 с созданным платежом.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	var req PayRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	if req.Amount == nil {
		httpjson.Error(w, apperr.Validation("amount", "is required"))
		return
	}

	res, err := h.reports.Pay(r.Context(), service.PayInput{
		OrderID:        id,
		Amount:         *req.Amount,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, res)
}

func (h *Handler) warnUnavailable(r *http.Request, unavailable []string) {
	if len(unavailable) == 0 {
		return
	}
	observability.L(r.Context(), h.logger).Warn("report built without some sources",
		zap.String("path", r.URL.Path), zap.Strings("unavailable", unavailable))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		observability.L(r.Context(), h.logger).Error("reporting request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpjson.Error(w, err)
}
