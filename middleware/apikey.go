package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redrace/tournament-system/utils"
)

const APIKeyHeader = "X-API-Key"

// APIKeyGuard checks the X-API-Key header against a bcrypt hash. An empty hash disables keys.
type APIKeyGuard struct {
	hash   string
	auth   *Authenticator
	logger *slog.Logger
}

func NewAPIKeyGuard(hash string, auth *Authenticator, logger *slog.Logger) *APIKeyGuard {
	return &APIKeyGuard{hash: hash, auth: auth, logger: logger}
}

// AdminOrAPIKey lets a request through with a valid API key, otherwise it needs an admin JWT.
func (g *APIKeyGuard) AdminOrAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(APIKeyHeader); key != "" {
			if !utils.CheckAPIKeyHash(key, g.hash) {
				g.logger.Warn("rejected invalid api key", slog.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), apiKeyContextKey, true)))
			return
		}

		claims, err := g.auth.parse(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := WithClaims(r.Context(), claims)
		if !IsAdminFromContext(ctx) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
