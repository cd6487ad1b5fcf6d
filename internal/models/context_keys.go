package models

import "context"

// contextKey is private to avoid collisions with other packages.
type contextKey string

const (
	// UserContextKey holds the authenticated user id (string).
	UserContextKey contextKey = "userID"
	// RolesContextKey holds the user's roles ([]string).
	RolesContextKey contextKey = "userRoles"
)

// GetUserIDFromContext returns the authenticated user id, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserContextKey).(string)
	return userID, ok && userID != ""
}

// GetRolesFromContext returns the authenticated user's roles, if any.
func GetRolesFromContext(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(RolesContextKey).([]string)
	return roles, ok
}
