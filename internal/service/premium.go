// Package service contains the business logic layer.
//
// This file implements the premium service: usage aggregation, the access
// gate that decides whether one more premium action is allowed, and the
// append-only action log.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/metrics"
	"github.com/linksight/linksight/internal/repository"
	"github.com/sqlc-dev/pqtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultActionPageSize is the page size for action history.
	DefaultActionPageSize = 20

	// MaxActionPageSize caps a single action history page.
	MaxActionPageSize = 100
)

var tracer = otel.Tracer("github.com/linksight/linksight/internal/service")

// =============================================================================
// Interface Definition
// =============================================================================

// PremiumStore is the subset of repository queries the premium service needs.
// *repository.Queries satisfies it.
type PremiumStore interface {
	CountPremiumActionsByTypeSince(ctx context.Context, arg repository.CountPremiumActionsByTypeSinceParams) ([]repository.CountPremiumActionsByTypeSinceRow, error)
	GetLatestPremiumActionTime(ctx context.Context, arg repository.GetLatestPremiumActionTimeParams) (time.Time, error)
	CountPremiumActionsForPost(ctx context.Context, arg repository.CountPremiumActionsForPostParams) (int64, error)
	CreatePremiumAction(ctx context.Context, arg repository.CreatePremiumActionParams) (repository.PremiumAction, error)
	ListPremiumActions(ctx context.Context, arg repository.ListPremiumActionsParams) ([]repository.PremiumAction, error)
}

// PremiumService defines premium usage operations.
type PremiumService interface {
	// GetLimits returns the limits for a role, or nil if none are configured.
	GetLimits(ctx context.Context, role domain.Role) (*domain.RoleLimits, error)

	// GetUsage returns sparse per-type counts of actions created at or after since.
	GetUsage(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.Usage, error)

	// GetMonthlyUsage returns usage for the current calendar month.
	GetMonthlyUsage(ctx context.Context, userID uuid.UUID) (*domain.Usage, error)

	// GetCycleUsage returns usage against limits for the user's current cycle.
	GetCycleUsage(ctx context.Context, user *domain.User) (*domain.CycleUsage, error)

	// CheckAccess decides whether the user may perform one more action now.
	// A missing limits configuration is a deny decision, not an error.
	// Nothing is recorded.
	CheckAccess(ctx context.Context, user *domain.User, req domain.AccessRequest) (*domain.AccessDecision, error)

	// RecordAction appends one action to the action log.
	RecordAction(ctx context.Context, params domain.RecordActionParams) (*domain.PremiumAction, error)

	// PerformAction runs CheckAccess and records the action if allowed.
	// A deny returns the decision together with a domain.ELIMIT error.
	PerformAction(ctx context.Context, user *domain.User, req domain.AccessRequest, metadata map[string]any) (*domain.PremiumAction, *domain.AccessDecision, error)

	// ListActions returns a newest-first page of the user's action history.
	ListActions(ctx context.Context, filter domain.ActionFilter) ([]*domain.PremiumAction, error)
}

// =============================================================================
// Implementation
// =============================================================================

type premiumService struct {
	store    PremiumStore
	registry *LimitRegistry
	logger   *slog.Logger
	now      func() time.Time
}

// NewPremiumService creates a new PremiumService.
func NewPremiumService(store PremiumStore, registry *LimitRegistry, logger *slog.Logger) PremiumService {
	return &premiumService{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// GetLimits returns the limits for a role.
func (s *premiumService) GetLimits(ctx context.Context, role domain.Role) (*domain.RoleLimits, error) {
	return s.registry.Lookup(ctx, role.LimitKey())
}

// GetUsage aggregates the user's actions by type since the given instant.
func (s *premiumService) GetUsage(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.Usage, error) {
	const op = "premium.get_usage"

	rows, err := s.store.CountPremiumActionsByTypeSince(ctx, repository.CountPremiumActionsByTypeSinceParams{
		UserID:    userID,
		CreatedAt: since,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count premium actions")
	}

	counts := make([]domain.ActionCount, 0, len(rows))
	for _, row := range rows {
		if row.Count == 0 {
			continue
		}
		counts = append(counts, domain.ActionCount{
			ActionType: domain.ActionType(row.ActionType),
			Count:      row.Count,
		})
	}

	return &domain.Usage{
		WindowStart: since,
		Counts:      counts,
	}, nil
}

// GetMonthlyUsage returns usage for the current calendar month.
func (s *premiumService) GetMonthlyUsage(ctx context.Context, userID uuid.UUID) (*domain.Usage, error) {
	return s.GetUsage(ctx, userID, domain.MonthStart(s.now()))
}

// GetCycleUsage returns usage against limits for the user's current cycle.
// Limits and counts are read concurrently.
func (s *premiumService) GetCycleUsage(ctx context.Context, user *domain.User) (*domain.CycleUsage, error) {
	cycle := domain.ResolveCycle(s.now(), user.SubscriptionStartDate)

	var (
		limits *domain.RoleLimits
		usage  *domain.Usage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		limits, err = s.GetLimits(gctx, user.Role)
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = s.GetUsage(gctx, user.ID, cycle.Start)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]domain.CycleUsageItem, 0, len(domain.ActionTypes))
	for _, actionType := range domain.ActionTypes {
		item := domain.CycleUsageItem{
			ActionType: actionType,
			Label:      actionType.Label(),
			Count:      usage.Count(actionType),
		}
		if limits != nil {
			item.MonthlyLimit = limits.MonthlyLimit(actionType)
		}
		if remaining := int64(item.MonthlyLimit) - item.Count; remaining > 0 {
			item.Remaining = remaining
		}
		items = append(items, item)
	}

	return &domain.CycleUsage{
		Cycle:  cycle,
		Limits: limits,
		Items:  items,
	}, nil
}

// CheckAccess implements the access gate.
//
// Order of checks:
//  1. limits configured for the role (deny if not)
//  2. monthly cap within the current cycle
//  3. profile_analysis: days_between_analysis throttle
//  4. post_optimization: max_per_post cap for the referenced post
func (s *premiumService) CheckAccess(ctx context.Context, user *domain.User, req domain.AccessRequest) (*domain.AccessDecision, error) {
	const op = "premium.check_access"

	ctx, span := tracer.Start(ctx, "PremiumService.CheckAccess", trace.WithAttributes(
		attribute.String("premium.action_type", string(req.ActionType)),
		attribute.String("user.role", string(user.Role)),
	))
	defer span.End()

	req, err := validateAccessRequest(op, req)
	if err != nil {
		return nil, err
	}

	decision, err := s.decide(ctx, user, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "access check failed")
		return nil, err
	}

	result := "allowed"
	if !decision.Allowed {
		result = "denied"
		s.logger.Info("premium action denied",
			"user_id", user.ID,
			"role", user.Role,
			"action_type", req.ActionType,
			"reason", decision.Reason,
			"used", decision.Used,
			"limit", decision.Limit,
		)
	}
	metrics.PremiumChecksTotal.WithLabelValues(string(req.ActionType), result, string(decision.Reason)).Inc()
	span.SetAttributes(
		attribute.Bool("premium.allowed", decision.Allowed),
		attribute.String("premium.reason", string(decision.Reason)),
		attribute.Int64("premium.used", decision.Used),
	)

	return decision, nil
}

func (s *premiumService) decide(ctx context.Context, user *domain.User, req domain.AccessRequest) (*domain.AccessDecision, error) {
	const op = "premium.check_access"

	now := s.now().UTC()
	cycle := domain.ResolveCycle(now, user.SubscriptionStartDate)
	decision := &domain.AccessDecision{
		ActionType: req.ActionType,
		CycleStart: cycle.Start,
		CycleEnd:   cycle.End,
	}

	limits, err := s.registry.Lookup(ctx, user.Role.LimitKey())
	if err != nil {
		return nil, err
	}
	if limits == nil {
		decision.Reason = domain.ReasonNoLimits
		return decision, nil
	}
	decision.Limit = limits.MonthlyLimit(req.ActionType)

	usage, err := s.GetUsage(ctx, user.ID, cycle.Start)
	if err != nil {
		return nil, err
	}
	decision.Used = usage.Count(req.ActionType)

	if decision.Used >= int64(decision.Limit) {
		decision.Reason = domain.ReasonMonthlyLimit
		return decision, nil
	}

	switch req.ActionType {
	case domain.ActionProfileAnalysis:
		days := limits.ProfileAnalysis.DaysBetweenAnalysis
		if days <= 0 {
			break
		}
		last, err := s.store.GetLatestPremiumActionTime(ctx, repository.GetLatestPremiumActionTimeParams{
			UserID:     user.ID,
			ActionType: string(domain.ActionProfileAnalysis),
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, domain.Internal(err, op, "failed to load last profile analysis")
		}
		if elapsedDays(last, now) < days {
			retryAfter := last.UTC().AddDate(0, 0, days)
			decision.Reason = domain.ReasonTooSoon
			decision.RetryAfter = &retryAfter
			return decision, nil
		}

	case domain.ActionPostOptimization:
		count, err := s.store.CountPremiumActionsForPost(ctx, repository.CountPremiumActionsForPostParams{
			UserID:     user.ID,
			ActionType: string(domain.ActionPostOptimization),
			PostID:     req.PostID,
		})
		if err != nil {
			return nil, domain.Internal(err, op, "failed to count post optimizations")
		}
		if count >= int64(limits.PostOptimization.MaxPerPost) {
			decision.Reason = domain.ReasonPostLimit
			return decision, nil
		}
	}

	decision.Allowed = true
	return decision, nil
}

// RecordAction appends one action to the action log.
func (s *premiumService) RecordAction(ctx context.Context, params domain.RecordActionParams) (*domain.PremiumAction, error) {
	const op = "premium.record_action"

	if _, ok := domain.ParseActionType(string(params.ActionType)); !ok {
		return nil, domain.Invalid(op, "unknown action_type")
	}

	raw := json.RawMessage("{}")
	if len(params.Metadata) > 0 {
		encoded, err := json.Marshal(params.Metadata)
		if err != nil {
			return nil, domain.Invalid(op, "metadata must be a JSON object")
		}
		raw = encoded
	}

	row, err := s.store.CreatePremiumAction(ctx, repository.CreatePremiumActionParams{
		UserID:     params.UserID,
		ActionType: string(params.ActionType),
		Metadata:   pqtype.NullRawMessage{RawMessage: raw, Valid: true},
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to record premium action")
	}

	metrics.PremiumActionsRecorded.WithLabelValues(string(params.ActionType)).Inc()
	s.logger.Info("premium action recorded",
		"user_id", params.UserID,
		"action_type", params.ActionType,
		"action_id", row.ID,
	)

	return rowToAction(row), nil
}

// PerformAction runs the access gate and, if allowed, records the action.
//
// Check and record are separate round-trips; concurrent requests for the same
// user can both pass the check.
func (s *premiumService) PerformAction(ctx context.Context, user *domain.User, req domain.AccessRequest, metadata map[string]any) (*domain.PremiumAction, *domain.AccessDecision, error) {
	const op = "premium.perform_action"

	req, err := validateAccessRequest(op, req)
	if err != nil {
		return nil, nil, err
	}

	decision, err := s.CheckAccess(ctx, user, req)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Allowed {
		return nil, decision, domain.LimitReached(op, decision)
	}

	if req.ActionType == domain.ActionPostOptimization {
		// Never write into the caller's map.
		metadata = maps.Clone(metadata)
		if metadata == nil {
			metadata = make(map[string]any, 1)
		}
		metadata[domain.MetadataPostID] = req.PostID
	}

	action, err := s.RecordAction(ctx, domain.RecordActionParams{
		UserID:     user.ID,
		ActionType: req.ActionType,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, decision, err
	}
	return action, decision, nil
}

// ListActions returns a newest-first page of the user's action history.
func (s *premiumService) ListActions(ctx context.Context, filter domain.ActionFilter) ([]*domain.PremiumAction, error) {
	const op = "premium.list_actions"

	if filter.ActionType != "" {
		if _, ok := domain.ParseActionType(string(filter.ActionType)); !ok {
			return nil, domain.Invalid(op, "unknown action_type")
		}
	}

	params := repository.ListPremiumActionsParams{
		UserID:     filter.UserID,
		ActionType: string(filter.ActionType),
		Since:      domain.ToNullTime(filter.Since),
		Limit:      uint64(normalizePageSize(filter.Limit)),
	}
	if filter.Offset > 0 {
		params.Offset = uint64(filter.Offset)
	}

	rows, err := s.store.ListPremiumActions(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list premium actions")
	}

	actions := make([]*domain.PremiumAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, rowToAction(row))
	}
	return actions, nil
}

// =============================================================================
// Helpers
// =============================================================================

// validateAccessRequest returns req with its action type normalized.
func validateAccessRequest(op string, req domain.AccessRequest) (domain.AccessRequest, error) {
	actionType, ok := domain.ParseActionType(string(req.ActionType))
	if !ok {
		return req, domain.Invalid(op, "unknown action_type")
	}
	req.ActionType = actionType
	req.PostID = strings.TrimSpace(req.PostID)
	if req.ActionType == domain.ActionPostOptimization && req.PostID == "" {
		return req, domain.Invalid(op, "post_id is required for post_optimization")
	}
	return req, nil
}

// elapsedDays counts whole 24-hour days between from and to.
func elapsedDays(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

func normalizePageSize(limit int) int {
	if limit <= 0 {
		return DefaultActionPageSize
	}
	if limit > MaxActionPageSize {
		return MaxActionPageSize
	}
	return limit
}

func rowToAction(row repository.PremiumAction) *domain.PremiumAction {
	metadata := json.RawMessage("{}")
	if row.Metadata.Valid && len(row.Metadata.RawMessage) > 0 {
		metadata = row.Metadata.RawMessage
	}
	return &domain.PremiumAction{
		ID:         row.ID,
		UserID:     row.UserID,
		ActionType: domain.ActionType(row.ActionType),
		Metadata:   metadata,
		CreatedAt:  row.CreatedAt,
	}
}

// Ensure premiumService implements PremiumService
var _ PremiumService = (*premiumService)(nil)
