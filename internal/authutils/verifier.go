package authutils

import (
	"context"
	"errors"
	"fmt"

	"story-engine/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTVerifier checks HMAC-signed access tokens issued by the auth service.
type JWTVerifier struct {
	jwtSecret string
	logger    *zap.Logger
}

// NewJWTVerifier creates a verifier. A nil logger is replaced with a no-op one.
func NewJWTVerifier(jwtSecret string, logger *zap.Logger) (*JWTVerifier, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTVerifier{
		jwtSecret: jwtSecret,
		logger:    logger.Named("JWTVerifier"),
	}, nil
}

// VerifyToken validates the signature and expiry and returns the claims.
// Errors wrap models.ErrTokenExpired, models.ErrTokenMalformed or models.ErrTokenInvalid.
func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (*models.Claims, error) {
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Warn("Unexpected signing method", zap.Any("alg", token.Header["alg"]))
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.jwtSecret), nil
	})
	if err != nil {
		log.Debug("Failed to parse or verify token", zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, models.ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}
	if claims.UserID == "" {
		log.Warn("Token missing user_id")
		return nil, fmt.Errorf("%w: user_id missing", models.ErrTokenInvalid)
	}
	return claims, nil
}

// tokenSnippet returns a prefix of the token that is safe to log.
func tokenSnippet(tokenString string) string {
	const limit = 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}
