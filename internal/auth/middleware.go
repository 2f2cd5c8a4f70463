package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"authcore/internal/models"
	"authcore/internal/repositories"
	pkghttp "authcore/pkg/http"
)

type contextKey string

const claimsContextKey contextKey = "access_claims"

// ClaimsFromContext returns the verified access claims for the request, if any.
func ClaimsFromContext(ctx context.Context) (*AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*AccessClaims)
	return claims, ok
}

// ContextWithClaims attaches verified claims to a context. Exposed for
// handler tests that bypass the middleware.
func ContextWithClaims(ctx context.Context, claims *AccessClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// RequireAuth verifies the bearer token and cross-checks the embedded
// security stamp against the store, so tokens minted before a password
// change are rejected even though their signature still verifies.
func RequireAuth(tm *TokenManager, uow repositories.UnitOfWorkFactory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				pkghttp.WriteUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := tm.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			unit := uow.New()
			defer unit.Close(r.Context())

			user, err := unit.Users().GetByID(r.Context(), claims.Subject)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			if user.SecurityStamp != claims.SecurityStamp || user.IsLocked || user.Status != models.UserStatusActive {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on a role claim. Must run after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}
			if !slices.Contains(claims.Roles, role) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
