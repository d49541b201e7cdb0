package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const originContextKey contextKey = "origin"

// Middleware requires a valid Bearer token and stores the token subject
// (the client origin) in the request context.
func (s *TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := s.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), originContextKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OriginFromContext returns the authenticated origin, or "" when the
// request was not authenticated.
func OriginFromContext(ctx context.Context) string {
	origin, _ := ctx.Value(originContextKey).(string)
	return origin
}
