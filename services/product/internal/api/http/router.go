package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
)

// NewRouter создаёт HTTP роутер Product Service.
// /products* требуют bearer token, /health и /metrics открыты.
func NewRouter(handler *Handler, verifier *auth.Verifier, checks map[string]platformhealth.Check, reg *metrics.Registry, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(platformobservability.HTTPMiddleware("product", logger))
	if reg != nil {
		router.Use(reg.Middleware)
		router.Handle("/metrics", reg.Handler())
	}

	router.Route("/products", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		r.Get("/", handler.ListProducts)
		r.Post("/", handler.CreateProducts)
		r.Get("/{id}", handler.GetProduct)
		r.Put("/{id}", handler.UpdateProduct)
		r.Delete("/{id}", handler.DeleteProduct)
	})

	router.Get("/health", platformhealth.Handler(checks))

	return router
}
