// Package middleware contains HTTP middleware for the Linksight API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/linksight/linksight/internal/auth"
	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/handler"
)

// =============================================================================
// Interfaces
// =============================================================================

// TokenParser verifies bearer tokens. *auth.TokenManager satisfies it.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// UserLoader loads the user a token refers to. service.UserService satisfies it.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware provides bearer token authentication.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	tokens TokenParser
	users  UserLoader
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(tokens TokenParser, users UserLoader, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser attempts to load the user from the Authorization header.
//
// The token only identifies the user; role and subscription state are read
// from the store so a stale token never grants a stale plan.
// The request always continues, with or without a user in context.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			m.logger.Debug("bearer token rejected", "error", err, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if domain.ErrorCode(err) != domain.ENOTFOUND {
				m.logger.Error("failed to load token user", "error", err, "user_id", userID)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.SetUser(r.Context(), user)
		noteRequestUser(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser returns 401 unless WithUser placed a user in the context.
//
// IMPORTANT: This middleware must be used AFTER WithUser in the middleware chain.
//
//	mux.Handle("GET /api/premium/limits", authMw.WithUser(authMw.RequireUser(h)))
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticated is WithUser followed by RequireUser.
func (m *AuthMiddleware) Authenticated(next http.Handler) http.Handler {
	return m.WithUser(m.RequireUser(next))
}

// =============================================================================
// Composition
// =============================================================================

// Stack composes middleware so the first argument is the outermost wrapper.
//
//	protected := middleware.Stack(authMw.WithUser, authMw.RequireUser)
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
