package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/httpjson"
	"github.com/shestoi/adminpanel/platform/observability"
)

// Middleware отклоняет запрос с 401 до любой бизнес-логики, если токена нет или он невалиден.
// Проверенный токен и claims кладутся в context.
func Middleware(v *Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := observability.LoggerFromContext(r.Context(), logger)

			raw, err := ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				log.Debug("request without bearer token", zap.Error(err))
				httpjson.ErrorMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("invalid bearer token", zap.Error(err))
				httpjson.ErrorMessage(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := WithToken(r.Context(), raw)
			ctx = withClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
