package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
)

// NewRouter создаёт HTTP роутер Payment Service.
// /payments* требуют bearer token, /health и /metrics открыты.
func NewRouter(handler *Handler, verifier *auth.Verifier, checks map[string]platformhealth.Check, reg *metrics.Registry, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(platformobservability.HTTPMiddleware("payment", logger))
	if reg != nil {
		router.Use(reg.Middleware)
		router.Handle("/metrics", reg.Handler())
	}

	router.Route("/payments", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		r.Get("/", handler.ListPayments)
		r.Post("/", handler.CreatePayment)
		r.Get("/{id}", handler.GetPayment)
		r.Put("/{id}", handler.UpdatePayment)
		r.Delete("/{id}", handler.DeletePayment)
	})

	router.Get("/health", platformhealth.Handler(checks))

	return router
}
