package httpapi

import (
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/httpjson"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/product/internal/repository"
	"github.com/shestoi/adminpanel/services/product/internal/service"
)

// Handler HTTP-обработчики Product Service
type Handler struct {
	products *service.ProductService
	logger   *zap.Logger
}

func NewHandler(products *service.ProductService, logger *zap.Logger) *Handler {
	return &Handler{products: products, logger: logger}
}

// ProductRequest тело POST/PUT. Price разбирается вручную: нечисловая цена
// пропускает элемент пачки, а не ломает весь запрос.
type ProductRequest struct {
	Name  string `json:"name"`
	Price any    `json:"price"`
}

func (req ProductRequest) input() service.ProductInput {
	in := service.ProductInput{Name: req.Name}
	if f, ok := req.Price.(float64); ok && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		p := int64(f)
		in.Price = &p
	}
	return in
}

// ProductResponse товар в API
type ProductResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func toResponse(p repository.Product) ProductResponse {
	return ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price}
}

func toResponses(products []repository.Product) []ProductResponse {
	resp := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toResponse(p))
	}
	return resp
}

// ListProducts GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponses(products))
}

// GetProduct GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(p))
}

// CreateProducts POST /products, один объект или массив
func (h *Handler) CreateProducts(w http.ResponseWriter, r *http.Request) {
	reqs, err := httpjson.DecodeOneOrMany[ProductRequest](r)
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	inputs := make([]service.ProductInput, 0, len(reqs))
	for _, req := range reqs {
		inputs = append(inputs, req.input())
	}

	created, err := h.products.CreateProducts(r.Context(), inputs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponses(created))
}

// UpdateProduct PUT /products/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	var req ProductRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	p, err := h.products.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(p))
}

// DeleteProduct DELETE /products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		observability.L(r.Context(), h.logger).Error("product request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpjson.Error(w, err)
}
