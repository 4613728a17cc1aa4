package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/and161185/servicecenter/internal/auth"
	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
	"go.uber.org/zap"
)

type Storage interface {
	GetProfile(ctx context.Context, id string) (model.UserProfile, error)
}

type contextKey string

const (
	UserContextKey  contextKey = "user"
	TokenContextKey contextKey = "token"
)

func AuthMiddleware(store Storage, tm *auth.TokenManager, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			userID, err := tm.ParseToken(tokenStr)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := store.GetProfile(r.Context(), userID)
			if err != nil {
				if errors.Is(err, errs.ErrUserNotFound) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				logger.Errorf("load user %s: %v", userID, err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = context.WithValue(ctx, TokenContextKey, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the profile AuthMiddleware attached to the request.
func UserFromContext(ctx context.Context) (model.UserProfile, bool) {
	user, ok := ctx.Value(UserContextKey).(model.UserProfile)
	return user, ok
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenContextKey).(string)
	return token, ok
}
