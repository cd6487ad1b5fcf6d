package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"story-engine/internal/middleware"
	"story-engine/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fakeVerifier(_ context.Context, token string) (*models.Claims, error) {
	switch token {
	case "good":
		return &models.Claims{UserID: "player-1", Roles: []string{"user"}}, nil
	case "expired":
		return nil, models.ErrTokenExpired
	case "bad":
		return nil, models.ErrTokenInvalid
	default:
		return nil, errors.New("verifier exploded")
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(echo.WrapMiddleware(middleware.AuthMiddleware(fakeVerifier, zap.NewNop())))
	e.GET("/me", func(c echo.Context) error {
		userID, ok := models.GetUserIDFromContext(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, userID)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer good", http.StatusOK, "player-1"},
		{"lowercase scheme", "bearer good", http.StatusOK, "player-1"},
		{"missing header", "", http.StatusUnauthorized, "Missing token"},
		{"malformed header", "Token good", http.StatusUnauthorized, "Malformed"},
		{"expired", "Bearer expired", http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer bad", http.StatusUnauthorized, "Invalid token"},
		{"verifier failure", "Bearer boom", http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestEchoZapLoggerPassesErrorsThrough(t *testing.T) {
	e := echo.New()
	e.Use(middleware.EchoZapLogger(zap.NewNop()), middleware.PrometheusMetrics())
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
