package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/identity"
)

type contextKey string

const principalKey contextKey = "principal"

// Auth resolves the current principal from the portal-issued bearer token
// and injects it into the request context.
func Auth(verifier *identity.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Missing or invalid token"}}`, http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Invalid or expired token"}}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the request
// context.
func GetPrincipal(ctx context.Context) domain.Principal {
	return ctx.Value(principalKey).(domain.Principal)
}
