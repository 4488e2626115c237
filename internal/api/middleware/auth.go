// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/penlane/greenroom/internal/auth"
)

type contextKey string

const tokenNameKey contextKey = "tokenName"

// Auth returns middleware that requires a valid API token.
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			name, err := authService.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tokenNameKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenNameFromContext returns the name of the API token that authenticated
// the request.
func TokenNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenNameKey).(string); ok {
		return v
	}
	return ""
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	// Query parameter fallback for clients that cannot set headers
	if apikey := r.URL.Query().Get("apikey"); apikey != "" {
		return apikey
	}

	return ""
}
