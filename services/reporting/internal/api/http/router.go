package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
)

// NewRouter создаёт HTTP роутер Reporting Service.
// /ledger* требуют bearer token: он же уходит во все четыре сервиса.
func NewRouter(handler *Handler, verifier *auth.Verifier, checks map[string]platformhealth.Check, reg *metrics.Registry, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(platformobservability.HTTPMiddleware("reporting", logger))
	if reg != nil {
		router.Use(reg.Middleware)
		router.Handle("/metrics", reg.Handler())
	}

	router.Route("/ledger", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		r.Get("/balances", handler.Balances)
		r.Get("/unpaid", handler.Unpaid)
		r.Get("/top-products", handler.TopProducts)
		r.Get("/dashboard", handler.Dashboard)
		r.Post("/orders/{id}/pay", handler.Pay)
	})

	router.Get("/health", platformhealth.Handler(checks))

	return router
}
