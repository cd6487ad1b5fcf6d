package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"story-engine/internal/models"

	"go.uber.org/zap"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

type errorBody struct {
	Message string `json:"message"`
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Message: message})
}

// AuthMiddleware requires a valid bearer token and puts the user id and roles into
// the request context (models.UserContextKey, models.RolesContextKey).
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.With(zap.String("path", r.URL.Path))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug("Authorization header missing")
				sendJSONError(w, "Unauthorized: Missing token", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				log.Warn("Malformed Authorization header")
				sendJSONError(w, "Unauthorized: Malformed token header", http.StatusUnauthorized)
				return
			}

			claims, err := verifier(ctx, parts[1])
			if err != nil {
				status := http.StatusUnauthorized
				msg := "Unauthorized: Invalid token"
				switch {
				case errors.Is(err, models.ErrTokenExpired):
					msg = "Unauthorized: Token expired"
				case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
				default:
					log.Error("Unexpected token verification error", zap.Error(err))
					status = http.StatusInternalServerError
					msg = "Internal server error during token verification"
				}
				log.Warn("Token verification failed", zap.Error(err))
				sendJSONError(w, msg, status)
				return
			}

			ctx = context.WithValue(ctx, models.UserContextKey, claims.UserID)
			ctx = context.WithValue(ctx, models.RolesContextKey, claims.Roles)
			log.Debug("User authorized", zap.String("userID", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
