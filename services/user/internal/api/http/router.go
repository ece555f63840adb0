package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/metrics"
	platformobservability "github.com/shestoi/adminpanel/platform/observability"
)

// NewRouter создаёт HTTP роутер User Service.
// register и login открыты, остальные /users* требуют bearer token.
func NewRouter(handler *Handler, verifier *auth.Verifier, checks map[string]platformhealth.Check, reg *metrics.Registry, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(platformobservability.HTTPMiddleware("user", logger))
	if reg != nil {
		router.Use(reg.Middleware)
		router.Handle("/metrics", reg.Handler())
	}

	router.Route("/users", func(r chi.Router) {
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, logger))
			r.Get("/", handler.ListUsers)
			r.Put("/{id}", handler.UpdateUser)
			r.Delete("/{id}", handler.DeleteUser)
		})
	})

	router.Get("/health", platformhealth.Handler(checks))

	return router
}
