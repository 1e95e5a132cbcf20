package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// =============================================================================
// Mocks
// =============================================================================

type mockBilling struct {
	event     stripe.Event
	verifyErr error
	sub       *stripe.Subscription
	subErr    error
	roles     map[string]domain.Role
}

func (m *mockBilling) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	return m.sub, m.subErr
}

func (m *mockBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return m.event, m.verifyErr
}

func (m *mockBilling) RoleForPriceID(priceID string) domain.Role {
	if role, ok := m.roles[priceID]; ok {
		return role
	}
	return domain.RoleFree
}

type mockSubscriptionUsers struct {
	users   map[string]*domain.User
	updates []domain.SubscriptionUpdateParams
	err     error
}

func (m *mockSubscriptionUsers) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if u, ok := m.users[customerID]; ok {
		return u, nil
	}
	return nil, domain.NotFound("user.get_by_stripe_customer_id", "user", customerID)
}

func (m *mockSubscriptionUsers) UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdateParams) error {
	m.updates = append(m.updates, params)
	return m.err
}

// =============================================================================
// Helpers
// =============================================================================

var (
	subStart = time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	subNext  = time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
)

func billingCustomer() *domain.User {
	start := subStart
	next := subNext
	return &domain.User{
		ID:                    uuid.MustParse("0b7c5f3e-2d1a-4c9b-8e7f-6a5b4c3d2e1f"),
		Role:                  domain.RolePro,
		SubscriptionStatus:    domain.SubscriptionStatusActive,
		SubscriptionStartDate: &start,
		NextBillingDate:       &next,
		StripeCustomerID:      "cus_123",
		StripeSubscriptionID:  "sub_123",
	}
}

func stripeEvent(eventType string, raw string) stripe.Event {
	return stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: []byte(raw)},
	}
}

func deliver(h *WebhookHandler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, req)
	return rec
}

// =============================================================================
// Tests
// =============================================================================

func TestWebhook_BillingDisabledAcknowledges(t *testing.T) {
	h := NewWebhookHandler(nil, &mockSubscriptionUsers{}, discardLogger())
	assert.Equal(t, http.StatusOK, deliver(h).Code)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	users := &mockSubscriptionUsers{}
	h := NewWebhookHandler(&mockBilling{verifyErr: errors.New("bad signature")}, users, discardLogger())

	assert.Equal(t, http.StatusBadRequest, deliver(h).Code)
	assert.Empty(t, users.updates)
}

func TestWebhook_SubscriptionUpdatedWritesRoleStatusAndDates(t *testing.T) {
	users := &mockSubscriptionUsers{users: map[string]*domain.User{"cus_123": billingCustomer()}}
	raw := `{
		"id": "sub_456",
		"customer": "cus_123",
		"status": "active",
		"start_date": 1706691600,
		"current_period_end": 1709197200,
		"items": {"data": [{"id": "si_1", "price": {"id": "price_business_monthly"}}]}
	}`
	b := &mockBilling{
		event: stripeEvent("customer.subscription.updated", raw),
		roles: map[string]domain.Role{"price_business_monthly": domain.RoleBusiness},
	}

	before := testutil.ToFloat64(metrics.WebhookEventsTotal.WithLabelValues("customer.subscription.updated", "processed"))
	rec := deliver(NewWebhookHandler(b, users, discardLogger()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.updates, 1)
	got := users.updates[0]
	assert.Equal(t, domain.RoleBusiness, got.Role)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, "sub_456", got.SubscriptionID)
	require.NotNil(t, got.SubscriptionStartDate)
	require.NotNil(t, got.NextBillingDate)
	assert.True(t, subStart.Equal(*got.SubscriptionStartDate))
	assert.True(t, subNext.Equal(*got.NextBillingDate))
	assert.Equal(t, before+1,
		testutil.ToFloat64(metrics.WebhookEventsTotal.WithLabelValues("customer.subscription.updated", "processed")))
}

func TestWebhook_SubscriptionUpdatedLapsedStatusDropsPaidRole(t *testing.T) {
	tests := []struct {
		status string
		want   domain.Role
	}{
		{"active", domain.RolePro},
		{"trialing", domain.RolePro},
		{"past_due", domain.RoleFree},
		{"unpaid", domain.RoleFree},
		{"incomplete_expired", domain.RoleFree},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			users := &mockSubscriptionUsers{users: map[string]*domain.User{"cus_123": billingCustomer()}}
			raw := `{"id":"sub_123","customer":"cus_123","status":"` + tt.status + `",` +
				`"items":{"data":[{"id":"si_1","price":{"id":"price_pro_monthly"}}]}}`
			b := &mockBilling{
				event: stripeEvent("customer.subscription.updated", raw),
				roles: map[string]domain.Role{"price_pro_monthly": domain.RolePro},
			}

			deliver(NewWebhookHandler(b, users, discardLogger()))

			require.Len(t, users.updates, 1)
			assert.Equal(t, tt.want, users.updates[0].Role)
			assert.Equal(t, domain.SubscriptionStatus(tt.status), users.updates[0].Status)
		})
	}
}

func TestWebhook_SubscriptionDeletedDowngrades(t *testing.T) {
	users := &mockSubscriptionUsers{users: map[string]*domain.User{"cus_123": billingCustomer()}}
	b := &mockBilling{event: stripeEvent("customer.subscription.deleted", `{"id":"sub_123","customer":"cus_123","status":"canceled"}`)}

	rec := deliver(NewWebhookHandler(b, users, discardLogger()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.updates, 1)
	got := users.updates[0]
	assert.Equal(t, domain.RoleFree, got.Role)
	assert.Equal(t, domain.SubscriptionStatusCanceled, got.Status)
	assert.Nil(t, got.SubscriptionStartDate)
	assert.Nil(t, got.NextBillingDate)
}

func TestWebhook_PaymentFailedKeepsRoleAndDates(t *testing.T) {
	users := &mockSubscriptionUsers{users: map[string]*domain.User{"cus_123": billingCustomer()}}
	b := &mockBilling{event: stripeEvent("invoice.payment_failed", `{"id":"in_1","customer":"cus_123"}`)}

	deliver(NewWebhookHandler(b, users, discardLogger()))

	require.Len(t, users.updates, 1)
	got := users.updates[0]
	assert.Equal(t, domain.SubscriptionStatusPastDue, got.Status)
	assert.Equal(t, domain.RolePro, got.Role)
	require.NotNil(t, got.SubscriptionStartDate)
	assert.True(t, subStart.Equal(*got.SubscriptionStartDate))
}

func TestWebhook_PaymentSucceededRefreshesDates(t *testing.T) {
	customer := billingCustomer()
	customer.SubscriptionStatus = domain.SubscriptionStatusPastDue
	users := &mockSubscriptionUsers{users: map[string]*domain.User{"cus_123": customer}}

	renewedEnd := time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC)
	b := &mockBilling{
		event: stripeEvent("invoice.payment_succeeded", `{"id":"in_2","customer":"cus_123","subscription":"sub_123"}`),
		sub: &stripe.Subscription{
			ID:               "sub_123",
			StartDate:        subStart.Unix(),
			CurrentPeriodEnd: renewedEnd.Unix(),
		},
	}

	deliver(NewWebhookHandler(b, users, discardLogger()))

	require.Len(t, users.updates, 1)
	got := users.updates[0]
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, domain.RolePro, got.Role)
	require.NotNil(t, got.NextBillingDate)
	assert.True(t, renewedEnd.Equal(*got.NextBillingDate))
}

func TestWebhook_PaymentSucceededKeepsDatesWhenRefreshFails(t *testing.T) {
	users := &mockSubscriptionUsers{users: map[string]*domain.User{"cus_123": billingCustomer()}}
	b := &mockBilling{
		event:  stripeEvent("invoice.payment_succeeded", `{"id":"in_3","customer":"cus_123","subscription":"sub_123"}`),
		subErr: errors.New("stripe unavailable"),
	}

	deliver(NewWebhookHandler(b, users, discardLogger()))

	require.Len(t, users.updates, 1)
	require.NotNil(t, users.updates[0].NextBillingDate)
	assert.True(t, subNext.Equal(*users.updates[0].NextBillingDate))
}

func TestWebhook_UnknownCustomerAcknowledged(t *testing.T) {
	users := &mockSubscriptionUsers{}
	b := &mockBilling{event: stripeEvent("customer.subscription.created", `{"id":"sub_9","customer":"cus_ghost","status":"active"}`)}

	rec := deliver(NewWebhookHandler(b, users, discardLogger()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, users.updates)
}

func TestWebhook_UnhandledEventIgnored(t *testing.T) {
	users := &mockSubscriptionUsers{}
	b := &mockBilling{event: stripeEvent("charge.refunded", `{"id":"ch_1"}`)}

	rec := deliver(NewWebhookHandler(b, users, discardLogger()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, users.updates)
}
