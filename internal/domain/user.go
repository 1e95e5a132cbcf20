// Package domain contains core business types and interfaces.
//
// This file defines the User domain type. Only identity and subscription state
// are modeled here; profile and analytics data live in other services.
package domain

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the subscription role that selects a set of premium limits.
type Role string

const (
	RoleFree     Role = "free"
	RolePro      Role = "pro"
	RoleBusiness Role = "business"
)

// ParseRole normalizes a role string. Unknown values fall back to free.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePro:
		return RolePro
	case RoleBusiness:
		return RoleBusiness
	default:
		return RoleFree
	}
}

// LimitKey returns the uppercase key used by premium_limits rows.
func (r Role) LimitKey() string {
	return strings.ToUpper(string(r))
}

// SubscriptionStatus is the billing provider's free-text status.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// User represents a Linksight account.
//
// SubscriptionStartDate anchors the billing cycle and is written only by the
// billing integration.
type User struct {
	ID                    uuid.UUID
	Email                 string
	Name                  string
	Role                  Role
	SubscriptionStatus    SubscriptionStatus
	SubscriptionStartDate *time.Time
	NextBillingDate       *time.Time
	StripeCustomerID      string
	StripeSubscriptionID  string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// GrantsPaidRole reports whether a subscription in this status keeps the
// role its price grants. Every other status is treated as the free role.
func (s SubscriptionStatus) GrantsPaidRole() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// SubscriptionUpdateParams carries the fields the billing integration writes.
type SubscriptionUpdateParams struct {
	UserID                uuid.UUID
	Role                  Role
	Status                SubscriptionStatus
	SubscriptionID        string
	SubscriptionStartDate *time.Time
	NextBillingDate       *time.Time
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
