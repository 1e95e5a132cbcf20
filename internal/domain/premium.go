// Package domain contains core business types and interfaces.
//
// This file defines the premium usage model: per-role limits, the action log
// and the decisions produced by the access gate.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ActionType identifies a premium-gated operation.
type ActionType string

const (
	ActionProfileAnalysis  ActionType = "profile_analysis"
	ActionPostOptimization ActionType = "post_optimization"
	ActionBatchAnalysis    ActionType = "batch_analysis"
)

// ActionTypes lists every known action type in display order.
var ActionTypes = []ActionType{
	ActionProfileAnalysis,
	ActionPostOptimization,
	ActionBatchAnalysis,
}

// ParseActionType validates an action type string.
func ParseActionType(s string) (ActionType, bool) {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ActionTypes {
		if a == known {
			return a, true
		}
	}
	return "", false
}

// Label returns a human-readable name, e.g. "Profile Analysis".
func (a ActionType) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(a), "_", " "))
}

// LimitType identifies which kind of cap a premium_limits row configures.
type LimitType string

const (
	LimitMonthly             LimitType = "monthly_limit"
	LimitDaysBetweenAnalysis LimitType = "days_between_analysis"
	LimitMaxPerPost          LimitType = "max_per_post"
)

// MetadataPostID is the metadata key that references the optimized post.
const MetadataPostID = "post_id"

// PremiumLimit is one configuration row of the limit registry.
type PremiumLimit struct {
	Role       string
	ActionType ActionType
	LimitType  LimitType
	LimitValue int
}

// ProfileAnalysisLimits holds the caps for profile_analysis.
type ProfileAnalysisLimits struct {
	DaysBetweenAnalysis int `json:"days_between_analysis"`
	MonthlyLimit        int `json:"monthly_limit"`
}

// PostOptimizationLimits holds the caps for post_optimization.
type PostOptimizationLimits struct {
	MaxPerPost   int `json:"max_per_post"`
	MonthlyLimit int `json:"monthly_limit"`
}

// BatchAnalysisLimits holds the caps for batch_analysis.
type BatchAnalysisLimits struct {
	MonthlyLimit int `json:"monthly_limit"`
}

// RoleLimits is the folded set of limits for one role.
type RoleLimits struct {
	ProfileAnalysis  ProfileAnalysisLimits  `json:"profile_analysis"`
	PostOptimization PostOptimizationLimits `json:"post_optimization"`
	BatchAnalysis    BatchAnalysisLimits    `json:"batch_analysis"`
}

// FoldLimits folds registry rows into a RoleLimits value.
//
// It returns nil when rows is empty so callers can tell an unconfigured role
// apart from a role configured with all-zero limits. Unknown action/limit type
// combinations are ignored.
func FoldLimits(rows []PremiumLimit) *RoleLimits {
	if len(rows) == 0 {
		return nil
	}

	limits := &RoleLimits{}
	for _, row := range rows {
		switch row.ActionType {
		case ActionProfileAnalysis:
			switch row.LimitType {
			case LimitDaysBetweenAnalysis:
				limits.ProfileAnalysis.DaysBetweenAnalysis = row.LimitValue
			case LimitMonthly:
				limits.ProfileAnalysis.MonthlyLimit = row.LimitValue
			}
		case ActionPostOptimization:
			switch row.LimitType {
			case LimitMaxPerPost:
				limits.PostOptimization.MaxPerPost = row.LimitValue
			case LimitMonthly:
				limits.PostOptimization.MonthlyLimit = row.LimitValue
			}
		case ActionBatchAnalysis:
			if row.LimitType == LimitMonthly {
				limits.BatchAnalysis.MonthlyLimit = row.LimitValue
			}
		}
	}
	return limits
}

// MonthlyLimit returns the monthly cap for an action type, or 0 if unknown.
func (l *RoleLimits) MonthlyLimit(actionType ActionType) int {
	switch actionType {
	case ActionProfileAnalysis:
		return l.ProfileAnalysis.MonthlyLimit
	case ActionPostOptimization:
		return l.PostOptimization.MonthlyLimit
	case ActionBatchAnalysis:
		return l.BatchAnalysis.MonthlyLimit
	default:
		return 0
	}
}

// PremiumAction is an immutable record of one performed premium action.
type PremiumAction struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	ActionType ActionType      `json:"action_type"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ActionCount is one entry of the sparse usage aggregation.
type ActionCount struct {
	ActionType ActionType `json:"action_type"`
	Count      int64      `json:"count"`
}

// Usage is the sparse per-type action count inside a window.
type Usage struct {
	WindowStart time.Time     `json:"window_start"`
	Counts      []ActionCount `json:"usage"`
}

// Count returns the count for an action type, treating absent types as 0.
func (u *Usage) Count(actionType ActionType) int64 {
	for _, c := range u.Counts {
		if c.ActionType == actionType {
			return c.Count
		}
	}
	return 0
}

// ActionFilter selects a page of a user's action history.
type ActionFilter struct {
	UserID     uuid.UUID
	ActionType ActionType // optional
	Since      *time.Time // optional
	Limit      int
	Offset     int
}

// AccessRequest asks whether one more action of a type may be performed now.
type AccessRequest struct {
	ActionType ActionType
	PostID     string // required for post_optimization
}

// DenyReason explains why the access gate refused an action.
type DenyReason string

const (
	ReasonNone         DenyReason = ""
	ReasonNoLimits     DenyReason = "no_limits_configured"
	ReasonMonthlyLimit DenyReason = "monthly_limit_reached"
	ReasonTooSoon      DenyReason = "too_soon"
	ReasonPostLimit    DenyReason = "post_limit_reached"
)

// Message returns the client-facing explanation for a deny reason.
func (r DenyReason) Message() string {
	switch r {
	case ReasonNoLimits:
		return "No premium limits are configured for your plan."
	case ReasonMonthlyLimit:
		return "You have reached your limit for this billing cycle."
	case ReasonTooSoon:
		return "Please wait before running another profile analysis."
	case ReasonPostLimit:
		return "You have reached the optimization limit for this post."
	default:
		return ""
	}
}

// AccessDecision is the outcome of the access gate.
type AccessDecision struct {
	Allowed    bool       `json:"allowed"`
	Reason     DenyReason `json:"reason,omitempty"`
	ActionType ActionType `json:"action_type"`
	Used       int64      `json:"used"`
	Limit      int        `json:"limit"`
	CycleStart time.Time  `json:"cycle_start"`
	CycleEnd   time.Time  `json:"cycle_end"`
	RetryAfter *time.Time `json:"retry_after,omitempty"`
}

// RecordActionParams describes one completed premium action to log.
type RecordActionParams struct {
	UserID     uuid.UUID
	ActionType ActionType
	Metadata   map[string]any
}

// CycleUsageItem is the usage of one action type inside the current cycle.
type CycleUsageItem struct {
	ActionType   ActionType `json:"action_type"`
	Label        string     `json:"label"`
	Count        int64      `json:"count"`
	MonthlyLimit int        `json:"monthly_limit"`
	Remaining    int64      `json:"remaining"`
}

// CycleUsage reports usage against limits for the user's current cycle.
// Limits is nil when the role has no configured limits.
type CycleUsage struct {
	Cycle
	Limits *RoleLimits      `json:"limits"`
	Items  []CycleUsageItem `json:"usage"`
}
