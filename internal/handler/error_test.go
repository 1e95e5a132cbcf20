package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linksight/linksight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ELIMIT, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("PremiumService.RecordAction", "action_type", "Action type is required")

	req := httptest.NewRequest(http.MethodPost, "/internal/form", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, req, discardLogger(), ve)

	body := rec.Body.String()
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, body, "PremiumService")
	assert.Contains(t, body, "check your input")
}

func TestValidationErrorResponse_JSON_ReturnsFields(t *testing.T) {
	ve := domain.NewValidationError("PremiumService.RecordAction", "action_type", "Action type is required")

	req := httptest.NewRequest(http.MethodPost, "/api/premium/actions", nil)
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, req, discardLogger(), ve)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "PremiumService")

	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Equal(t, "Action type is required", body.Error.Fields["action_type"])
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	err := domain.Internal(errors.New("pq: connection refused to 10.0.0.5"), "premium.check_access", "failed to count actions")

	for _, path := range []string{"/api/premium/check", "/health"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			ErrorResponse(rec, req, discardLogger(), err)

			body := rec.Body.String()
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, body, "10.0.0.5")
			assert.NotContains(t, body, "premium.check_access")
			assert.NotContains(t, body, "failed to count actions")
		})
	}
}

func TestErrorResponse_APIPathsAreJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/premium/usage", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), domain.Invalid("premium.usage", "since must be RFC3339"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"invalid","message":"since must be RFC3339"}}`, rec.Body.String())
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/premium/limits", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), errors.New("raw driver failure"))

	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.EINTERNAL, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "driver")
}

func TestLimitReachedResponse_IncludesDecision(t *testing.T) {
	retry := time.Date(2024, 3, 27, 12, 0, 0, 0, time.UTC)
	decision := &domain.AccessDecision{
		Allowed:    false,
		Reason:     domain.ReasonTooSoon,
		ActionType: domain.ActionProfileAnalysis,
		Used:       1,
		Limit:      4,
		RetryAfter: &retry,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/premium/actions", nil)
	rec := httptest.NewRecorder()
	LimitReachedResponse(rec, req, discardLogger(), domain.LimitReached("premium.perform_action", decision), decision)

	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Decision domain.AccessDecision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ELIMIT, body.Error.Code)
	assert.Equal(t, domain.ReasonTooSoon.Message(), body.Error.Message)
	assert.Equal(t, domain.ReasonTooSoon, body.Decision.Reason)
	require.NotNil(t, body.Decision.RetryAfter)
	assert.True(t, retry.Equal(*body.Decision.RetryAfter))
}
