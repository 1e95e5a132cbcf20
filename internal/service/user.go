// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories and domain logic.
// They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserStore is the subset of repository queries the user service needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (repository.User, error)
	UpdateUserSubscription(ctx context.Context, arg repository.UpdateUserSubscriptionParams) error
}

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByStripeCustomerID retrieves the user linked to a billing customer.
	// Returns domain.ENOTFOUND if no user is linked.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)

	// UpdateSubscription writes role, status and cycle dates for a user.
	UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdateParams) error
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	queries UserStore
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(queries UserStore, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	return repoUserToDomain(repoUser), nil
}

// GetByStripeCustomerID retrieves the user linked to a billing customer.
func (s *userService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	if customerID == "" {
		return nil, domain.Invalid(op, "customer ID is required")
	}

	repoUser, err := s.queries.GetUserByStripeCustomerID(ctx, domain.ToNullString(customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", customerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	return repoUserToDomain(repoUser), nil
}

// UpdateSubscription writes role, status and cycle dates for a user.
//
// A nil SubscriptionStartDate clears the anchor, which moves the user back to
// calendar-month cycles.
func (s *userService) UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdateParams) error {
	const op = "UserService.UpdateSubscription"

	if params.UserID == uuid.Nil {
		return domain.Invalid(op, "user ID is required")
	}

	err := s.queries.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		ID:                    params.UserID,
		Role:                  string(domain.ParseRole(string(params.Role))),
		SubscriptionStatus:    domain.ToNullString(string(params.Status)),
		StripeSubscriptionID:  domain.ToNullString(params.SubscriptionID),
		SubscriptionStartDate: toUTCNullTime(params.SubscriptionStartDate),
		NextBillingDate:       toUTCNullTime(params.NextBillingDate),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}

	s.logger.Info("subscription updated",
		"user_id", params.UserID,
		"role", params.Role,
		"status", params.Status,
	)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// repoUserToDomain converts a repository.User to a domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	user := &domain.User{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		Role:                  domain.ParseRole(u.Role),
		SubscriptionStatus:    domain.SubscriptionStatus(domain.NullStringValue(u.SubscriptionStatus)),
		SubscriptionStartDate: utcPtr(domain.NullTimeValue(u.SubscriptionStartDate)),
		NextBillingDate:       utcPtr(domain.NullTimeValue(u.NextBillingDate)),
		StripeCustomerID:      domain.NullStringValue(u.StripeCustomerID),
		StripeSubscriptionID:  domain.NullStringValue(u.StripeSubscriptionID),
	}
	if u.CreatedAt.Valid {
		user.CreatedAt = u.CreatedAt.Time
	}
	if u.UpdatedAt.Valid {
		user.UpdatedAt = u.UpdatedAt.Time
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = domain.SubscriptionStatusInactive
	}
	return user
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toUTCNullTime(t *time.Time) sql.NullTime {
	return domain.ToNullTime(utcPtr(t))
}

// Ensure userService implements UserService
var _ UserService = (*userService)(nil)
