package models

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims accepted by the service.
// UserID is opaque and compared verbatim with stored owner ids.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}
