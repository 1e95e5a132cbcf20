package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linksight/linksight/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// memStore is an in-memory stand-in for *repository.Queries.
type memStore struct {
	mu      sync.Mutex
	limits  []repository.PremiumLimit
	actions []repository.PremiumAction
	users   map[uuid.UUID]repository.User

	limitLoads int
	failWith   error
	clock      func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]repository.User),
		clock: time.Now,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (m *memStore) addLimit(role, actionType, limitType string, value int32) {
	m.limits = append(m.limits, repository.PremiumLimit{
		ID:         int32(len(m.limits) + 1),
		Role:       role,
		ActionType: actionType,
		LimitType:  limitType,
		LimitValue: value,
	})
}

// addAction inserts a historical action with an explicit timestamp.
func (m *memStore) addAction(userID uuid.UUID, actionType string, at time.Time, metadata map[string]any) {
	raw, _ := json.Marshal(metadata)
	if metadata == nil {
		raw = []byte("{}")
	}
	m.actions = append(m.actions, repository.PremiumAction{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: actionType,
		Metadata:   pqtype.NullRawMessage{RawMessage: raw, Valid: true},
		CreatedAt:  at,
	})
}

func (m *memStore) ListPremiumLimitsByRole(_ context.Context, role string) ([]repository.PremiumLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.limitLoads++
	var out []repository.PremiumLimit
	for _, l := range m.limits {
		if strings.EqualFold(l.Role, role) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ListPremiumLimitRoles(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	seen := map[string]bool{}
	var roles []string
	for _, l := range m.limits {
		if !seen[l.Role] {
			seen[l.Role] = true
			roles = append(roles, l.Role)
		}
	}
	sort.Strings(roles)
	return roles, nil
}

func (m *memStore) CountPremiumActionsByTypeSince(_ context.Context, arg repository.CountPremiumActionsByTypeSinceParams) ([]repository.CountPremiumActionsByTypeSinceRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	counts := map[string]int64{}
	for _, a := range m.actions {
		if a.UserID == arg.UserID && !a.CreatedAt.Before(arg.CreatedAt) {
			counts[a.ActionType]++
		}
	}
	var rows []repository.CountPremiumActionsByTypeSinceRow
	for actionType, count := range counts {
		rows = append(rows, repository.CountPremiumActionsByTypeSinceRow{ActionType: actionType, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ActionType < rows[j].ActionType })
	return rows, nil
}

func (m *memStore) GetLatestPremiumActionTime(_ context.Context, arg repository.GetLatestPremiumActionTimeParams) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return time.Time{}, m.failWith
	}
	var latest time.Time
	found := false
	for _, a := range m.actions {
		if a.UserID == arg.UserID && a.ActionType == arg.ActionType && (!found || a.CreatedAt.After(latest)) {
			latest = a.CreatedAt
			found = true
		}
	}
	if !found {
		return time.Time{}, sql.ErrNoRows
	}
	return latest, nil
}

func (m *memStore) CountPremiumActionsForPost(_ context.Context, arg repository.CountPremiumActionsForPostParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	var count int64
	for _, a := range m.actions {
		if a.UserID != arg.UserID || a.ActionType != arg.ActionType {
			continue
		}
		var meta map[string]any
		if err := json.Unmarshal(a.Metadata.RawMessage, &meta); err != nil {
			continue
		}
		if postID, ok := meta["post_id"].(string); ok && postID == arg.PostID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) CreatePremiumAction(_ context.Context, arg repository.CreatePremiumActionParams) (repository.PremiumAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return repository.PremiumAction{}, m.failWith
	}
	action := repository.PremiumAction{
		ID:         uuid.New(),
		UserID:     arg.UserID,
		ActionType: arg.ActionType,
		Metadata:   arg.Metadata,
		CreatedAt:  m.clock(),
	}
	m.actions = append(m.actions, action)
	return action, nil
}

func (m *memStore) ListPremiumActions(_ context.Context, arg repository.ListPremiumActionsParams) ([]repository.PremiumAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []repository.PremiumAction
	for _, a := range m.actions {
		if a.UserID != arg.UserID {
			continue
		}
		if arg.ActionType != "" && a.ActionType != arg.ActionType {
			continue
		}
		if arg.Since.Valid && a.CreatedAt.Before(arg.Since.Time) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if arg.Offset >= uint64(len(out)) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if arg.Limit > 0 && arg.Limit < uint64(len(out)) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return repository.User{}, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memStore) GetUserByStripeCustomerID(_ context.Context, customerID sql.NullString) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return repository.User{}, m.failWith
	}
	for _, u := range m.users {
		if u.StripeCustomerID.Valid && u.StripeCustomerID.String == customerID.String {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *memStore) UpdateUserSubscription(_ context.Context, arg repository.UpdateUserSubscriptionParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[arg.ID]
	if !ok {
		return nil
	}
	u.Role = arg.Role
	u.SubscriptionStatus = arg.SubscriptionStatus
	u.StripeSubscriptionID = arg.StripeSubscriptionID
	u.SubscriptionStartDate = arg.SubscriptionStartDate
	u.NextBillingDate = arg.NextBillingDate
	m.users[arg.ID] = u
	return nil
}

var (
	_ PremiumStore = (*memStore)(nil)
	_ LimitStore   = (*memStore)(nil)
	_ UserStore    = (*memStore)(nil)
)
