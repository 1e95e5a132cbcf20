// Package service contains the business logic layer.
//
// This file implements the limit registry: store-backed per-role premium
// limits, folded into domain.RoleLimits and cached in memory.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/metrics"
	"github.com/linksight/linksight/internal/repository"
	"github.com/patrickmn/go-cache"
)

// DefaultLimitsCacheTTL is used when the registry is built with a zero TTL.
const DefaultLimitsCacheTTL = 5 * time.Minute

// LimitStore is the subset of repository queries the registry needs.
type LimitStore interface {
	ListPremiumLimitsByRole(ctx context.Context, role string) ([]repository.PremiumLimit, error)
	ListPremiumLimitRoles(ctx context.Context) ([]string, error)
}

// LimitRegistry resolves the premium limits configured for a role.
//
// Results are cached per role, including the "not configured" result, so
// repeated lookups for the same role cost one store read per TTL.
type LimitRegistry struct {
	store  LimitStore
	cache  *cache.Cache
	logger *slog.Logger
}

// limitsEntry wraps a cached lookup so a nil result can be cached too.
type limitsEntry struct {
	limits *domain.RoleLimits
}

// NewLimitRegistry creates a LimitRegistry.
func NewLimitRegistry(store LimitStore, ttl time.Duration, logger *slog.Logger) *LimitRegistry {
	if ttl <= 0 {
		ttl = DefaultLimitsCacheTTL
	}
	return &LimitRegistry{
		store:  store,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Lookup returns the folded limits for role, matched case-insensitively.
// It returns nil, nil when the role has no rows.
func (r *LimitRegistry) Lookup(ctx context.Context, role string) (*domain.RoleLimits, error) {
	key := normalizeRoleKey(role)

	if cached, found := r.cache.Get(key); found {
		metrics.LimitCacheLookups.WithLabelValues("hit").Inc()
		return cloneLimits(cached.(limitsEntry).limits), nil
	}
	metrics.LimitCacheLookups.WithLabelValues("miss").Inc()

	limits, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return cloneLimits(limits), nil
}

// Warm loads every role present in the registry into the cache.
func (r *LimitRegistry) Warm(ctx context.Context) error {
	const op = "limits.warm"

	roles, err := r.store.ListPremiumLimitRoles(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to list limit roles")
	}

	for _, role := range roles {
		if _, err := r.load(ctx, normalizeRoleKey(role)); err != nil {
			return err
		}
	}

	r.logger.Info("premium limits loaded", "roles", len(roles))
	return nil
}

// Invalidate drops every cached lookup.
func (r *LimitRegistry) Invalidate() {
	r.cache.Flush()
}

// Refresh drops the cache and reloads every configured role.
func (r *LimitRegistry) Refresh(ctx context.Context) error {
	r.Invalidate()
	return r.Warm(ctx)
}

func (r *LimitRegistry) load(ctx context.Context, key string) (*domain.RoleLimits, error) {
	const op = "limits.lookup"

	rows, err := r.store.ListPremiumLimitsByRole(ctx, key)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load premium limits")
	}

	limits := domain.FoldLimits(rowsToLimits(rows))
	if limits == nil {
		r.logger.Warn("no premium limits configured", "role", key)
	}

	r.cache.Set(key, limitsEntry{limits: limits}, cache.DefaultExpiration)
	return limits, nil
}

func normalizeRoleKey(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

func rowsToLimits(rows []repository.PremiumLimit) []domain.PremiumLimit {
	limits := make([]domain.PremiumLimit, 0, len(rows))
	for _, row := range rows {
		limits = append(limits, domain.PremiumLimit{
			Role:       row.Role,
			ActionType: domain.ActionType(row.ActionType),
			LimitType:  domain.LimitType(row.LimitType),
			LimitValue: int(row.LimitValue),
		})
	}
	return limits
}

// cloneLimits keeps callers from mutating the cached value.
func cloneLimits(l *domain.RoleLimits) *domain.RoleLimits {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
