package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"places-backend/internal/apperror"
	"places-backend/internal/models"

	"github.com/rs/zerolog/log"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenValidator verifies a bearer token and returns the caller identity
type TokenValidator interface {
	ValidateToken(token string) (models.Identity, error)
}

// AuthMiddleware creates a middleware for JWT authentication. Preflight
// requests pass through unauthenticated.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := tokens.ValidateToken(BearerToken(r))
			if err != nil {
				log.Debug().
					Err(err).
					Str("path", r.URL.Path).
					Msg("Rejected request with invalid credentials")
				respondError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns an empty string when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// WithIdentity stores the caller identity in ctx
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity extracts the caller identity from context
func GetIdentity(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}

// respondError sends an error response
func respondError(w http.ResponseWriter, err error) {
	status := apperror.StatusOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": apperror.MessageOf(err),
		"code":    status,
	})
}
