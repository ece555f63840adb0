package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
)

// NewRouter создаёт HTTP роутер Order Service.
// checks - readiness проверки для /health (например ping БД).
func NewRouter(handler *Handler, verifier *auth.Verifier, checks map[string]platformhealth.Check, reg *metrics.Registry, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// trace context + span на каждый запрос, logger с trace_id в контексте
	router.Use(platformobservability.HTTPMiddleware("order", logger))
	if reg != nil {
		router.Use(reg.Middleware)
		router.Handle("/metrics", reg.Handler())
	}

	// /orders* требуют bearer token (401 до бизнес-логики)
	router.Route("/orders", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		r.Get("/", handler.ListOrders)
		r.Post("/", handler.CreateOrder)
		r.Get("/{id}", handler.GetOrder)
		r.Put("/{id}", handler.UpdateOrder)
		r.Delete("/{id}", handler.DeleteOrder)
	})

	router.Get("/health", platformhealth.Handler(checks))

	return router
}
