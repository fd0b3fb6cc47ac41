package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Middleware enforces bearer authentication on every path except the
// configured exclusions. A nil verifier disables the check.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v.excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Missing Authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				unauthorized(w, "Invalid Authorization format, expected: Bearer <token>")
				return
			}

			claims, err := v.Verify(r.Context(), tokenString)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims, or nil when the
// request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

func (v *Verifier) excluded(path string) bool {
	for _, p := range v.cfg.ExcludedPaths {
		if path == p {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"detail":%q}`, msg)
}
