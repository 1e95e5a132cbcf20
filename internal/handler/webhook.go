// Package handler contains HTTP handlers for the Linksight API.
//
// This file implements the Stripe webhook handler that keeps roles and
// subscription cycle dates in sync with billing.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/linksight/linksight/internal/billing"
	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/metrics"
	"github.com/stripe/stripe-go/v79"
)

// Outcomes recorded on linksight_stripe_webhook_events_total.
const (
	webhookProcessed = "processed"
	webhookIgnored   = "ignored"
	webhookFailed    = "error"
)

// SubscriptionUsers is the subset of the user service the webhook writes through.
type SubscriptionUsers interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdateParams) error
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing billing.Service
	users   SubscriptionUsers
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, users SubscriptionUsers, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingService,
		users:   users,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
// Verified events are always acknowledged with 200, even when the update
// fails, so Stripe does not retry events for unknown customers.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Read body (limit to 64KB)
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	ctx := r.Context()
	var status string
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		status = h.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		status = h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		status = h.handlePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		status = h.handlePaymentFailed(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		status = webhookIgnored
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), status).Inc()
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) string {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return webhookFailed
	}

	user := h.lookupCustomer(ctx, sub.Customer, event.Type)
	if user == nil {
		return webhookIgnored
	}

	status := domain.SubscriptionStatus(sub.Status)
	role := domain.RoleFree
	if status.GrantsPaidRole() {
		role = h.billing.RoleForPriceID(billing.PriceID(&sub))
	}

	start, next := billing.SubscriptionDates(&sub)
	params := domain.SubscriptionUpdateParams{
		UserID:                user.ID,
		Role:                  role,
		Status:                status,
		SubscriptionID:        sub.ID,
		SubscriptionStartDate: start,
		NextBillingDate:       next,
	}
	if err := h.users.UpdateSubscription(ctx, params); err != nil {
		h.logger.Error("failed to update subscription", "error", err, "user_id", user.ID, "type", event.Type)
		return webhookFailed
	}

	h.logger.Info("subscription event processed",
		"user_id", user.ID, "type", event.Type, "status", params.Status, "role", params.Role)
	return webhookProcessed
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) string {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return webhookFailed
	}

	user := h.lookupCustomer(ctx, sub.Customer, event.Type)
	if user == nil {
		return webhookIgnored
	}

	if err := h.users.UpdateSubscription(ctx, domain.SubscriptionUpdateParams{
		UserID: user.ID,
		Role:   domain.RoleFree,
		Status: domain.SubscriptionStatusCanceled,
	}); err != nil {
		h.logger.Error("failed to cancel subscription", "error", err, "user_id", user.ID)
		return webhookFailed
	}

	h.logger.Info("subscription deleted", "user_id", user.ID, "subscription_id", sub.ID)
	return webhookProcessed
}

func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, event stripe.Event) string {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment succeeded event", "error", err)
		return webhookFailed
	}

	user := h.lookupCustomer(ctx, invoice.Customer, event.Type)
	if user == nil {
		return webhookIgnored
	}

	params := currentSubscription(user)
	params.Status = domain.SubscriptionStatusActive

	// A renewal moves next_billing_date; refresh it from the subscription.
	if invoice.Subscription != nil && invoice.Subscription.ID != "" {
		sub, err := h.billing.GetSubscription(invoice.Subscription.ID)
		if err != nil {
			h.logger.Warn("failed to refresh subscription dates", "error", err, "subscription_id", invoice.Subscription.ID)
		} else {
			params.SubscriptionID = sub.ID
			params.SubscriptionStartDate, params.NextBillingDate = billing.SubscriptionDates(sub)
		}
	}

	if err := h.users.UpdateSubscription(ctx, params); err != nil {
		h.logger.Error("failed to reactivate on payment success", "error", err, "user_id", user.ID)
		return webhookFailed
	}
	return webhookProcessed
}

func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) string {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment failed event", "error", err)
		return webhookFailed
	}

	user := h.lookupCustomer(ctx, invoice.Customer, event.Type)
	if user == nil {
		return webhookIgnored
	}

	params := currentSubscription(user)
	params.Status = domain.SubscriptionStatusPastDue
	if err := h.users.UpdateSubscription(ctx, params); err != nil {
		h.logger.Error("failed to set past_due on payment failure", "error", err, "user_id", user.ID)
		return webhookFailed
	}

	h.logger.Warn("payment failed", "user_id", user.ID, "customer_id", invoice.Customer.ID)
	return webhookProcessed
}

// lookupCustomer resolves the user linked to a Stripe customer.
// It returns nil, after logging, when the customer is missing or unknown.
func (h *WebhookHandler) lookupCustomer(ctx context.Context, customer *stripe.Customer, eventType stripe.EventType) *domain.User {
	if customer == nil || customer.ID == "" {
		h.logger.Warn("webhook event missing customer", "type", eventType)
		return nil
	}

	user, err := h.users.GetByStripeCustomerID(ctx, customer.ID)
	if err != nil {
		h.logger.Info("user not found for webhook event",
			"customer_id", customer.ID, "type", eventType, "error", err)
		return nil
	}
	return user
}

// currentSubscription copies the user's billing state into update params.
func currentSubscription(user *domain.User) domain.SubscriptionUpdateParams {
	return domain.SubscriptionUpdateParams{
		UserID:                user.ID,
		Role:                  user.Role,
		Status:                user.SubscriptionStatus,
		SubscriptionID:        user.StripeSubscriptionID,
		SubscriptionStartDate: user.SubscriptionStartDate,
		NextBillingDate:       user.NextBillingDate,
	}
}
