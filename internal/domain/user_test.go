package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatus_GrantsPaidRole(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   bool
	}{
		{SubscriptionStatusActive, true},
		{SubscriptionStatusTrialing, true},
		{SubscriptionStatusPastDue, false},
		{SubscriptionStatusUnpaid, false},
		{SubscriptionStatusCanceled, false},
		{SubscriptionStatusInactive, false},
		{"incomplete_expired", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.GrantsPaidRole())
		})
	}
}
