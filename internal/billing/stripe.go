// Package billing provides the Stripe boundary that keeps user roles and
// subscription cycle dates in sync with the billing provider.
package billing

import (
	"fmt"
	"time"

	"github.com/linksight/linksight/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service defines the interface for billing operations.
type Service interface {
	// GetSubscription retrieves a Stripe subscription by ID.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// RoleForPriceID returns the role a Stripe price ID grants.
	// Unknown prices map to the free role.
	RoleForPriceID(priceID string) domain.Role
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	ProMonthlyPriceID      string
	ProYearlyPriceID       string
	BusinessMonthlyPriceID string
	BusinessYearlyPriceID  string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	priceToRole   map[string]domain.Role
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
		priceToRole:   priceRoles(prices),
	}
}

func priceRoles(prices PriceConfig) map[string]domain.Role {
	priceToRole := make(map[string]domain.Role)
	for id, role := range map[string]domain.Role{
		prices.ProMonthlyPriceID:      domain.RolePro,
		prices.ProYearlyPriceID:       domain.RolePro,
		prices.BusinessMonthlyPriceID: domain.RoleBusiness,
		prices.BusinessYearlyPriceID:  domain.RoleBusiness,
	} {
		if id != "" {
			priceToRole[id] = role
		}
	}
	return priceToRole
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) RoleForPriceID(priceID string) domain.Role {
	if role, ok := s.priceToRole[priceID]; ok {
		return role
	}
	return domain.RoleFree
}

// SubscriptionDates extracts the cycle anchor and next billing date from a
// subscription. Zero Stripe timestamps become nil.
func SubscriptionDates(sub *stripe.Subscription) (start, next *time.Time) {
	return unixPtr(sub.StartDate), unixPtr(sub.CurrentPeriodEnd)
}

// PriceID returns the price of the subscription's first item, or "".
func PriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
