package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const emailContextKey contextKey = "email"

// authMiddleware verifies the bearer session credential on every request.
func (r *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		authz := req.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeDetail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		email, err := r.services.Auth.Authenticate(req.Context(), strings.TrimSpace(token))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(req.Context(), emailContextKey, email)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func getEmail(ctx context.Context) string {
	if v, ok := ctx.Value(emailContextKey).(string); ok {
		return v
	}
	return ""
}
