// internal/api/handler/middleware.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"traderiser/internal/domain"
	"traderiser/internal/service"
	"traderiser/internal/util"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// UserFromContext returns the authenticated user placed on the request
// context by Authenticator.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// Authenticator resolves the bearer token on each request and attaches the
// user to the context. Requests without a valid token get 401.
func Authenticator(auth service.AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				respondWithError(logger, w, util.ErrInvalidCredentials)
				return
			}
			user, err := auth.UserFromToken(r.Context(), token)
			if err != nil {
				respondWithError(logger, w, err)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActive rejects suspended users. Routes behind it are unreachable
// while a suspension is in force; appeal routes stay outside it.
func RequireActive(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				respondWithError(logger, w, util.ErrInvalidCredentials)
				return
			}
			if user.IsSuspended {
				respondWithError(logger, w, util.ErrSuspended)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff gates the admin surface.
func RequireStaff(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !user.IsStaff {
				respondWithError(logger, w, util.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
