// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/linksight/linksight/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// userContextKey is the key used to store the authenticated user in context.
const userContextKey contextKey = "user"

// GetUser retrieves the authenticated user from the context.
//
// Returns nil if no user is authenticated.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest retrieves the authenticated user from the request context.
//
// This is a convenience wrapper around GetUser that takes the request directly.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user in the context.
//
// This is typically called by authentication middleware after validating
// a bearer token and loading the user row.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
