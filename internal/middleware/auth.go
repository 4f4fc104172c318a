package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pretty1020/lept-reviewer/internal/logger"
	"github.com/pretty1020/lept-reviewer/internal/util"
)

// Injected key type to avoid context collisions
type contextKey string

const (
	UserContextKey  = contextKey("user")
	AdminContextKey = contextKey("admin")
)

// UserFromContext returns the authenticated email, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserContextKey).(string)
	return email, ok
}

// IsAdmin reports whether the request carried an admin claim.
func IsAdmin(ctx context.Context) bool {
	admin, ok := ctx.Value(AdminContextKey).(bool)
	return ok && admin
}

func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logger.New()
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Error().Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Error().Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateJWT(parts[1], jwtSecret)
			if err != nil {
				logger.Error().Msgf("Invalid token: %+v", err)
				http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims.Email)
			ctx = context.WithValue(ctx, AdminContextKey, claims.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects requests whose token lacks the admin claim. Must run
// after AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
