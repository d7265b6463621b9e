package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
)

// RequireAuth verifies bearer tokens on /api/v1 routes except the public ones and
// replaces identity headers with the verified claims.
func RequireAuth(verifier auth.Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if !verifier.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/v1/") || strings.HasPrefix(r.URL.Path, "/api/v1/public/") || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if !strings.HasPrefix(authHeader, "Bearer ") || token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r.Header.Del("X-User-Id")
			r.Header.Del("X-Professional-Id")
			r.Header.Del("X-Role")
			r.Header.Set("X-User-Id", claims.Sub)
			if claims.ProfessionalID != "" {
				r.Header.Set("X-Professional-Id", claims.ProfessionalID)
			}
			r.Header.Set("X-Role", claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}
