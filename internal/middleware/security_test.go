package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func TestSecurityHeadersMiddleware_SetsAllHeaders(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(false)

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/premium/limits", nil))

	h := rec.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Equal(t, apiCSP, h.Get("Content-Security-Policy"))
	assert.Contains(t, h.Get("Permissions-Policy"), "camera=()")
	assert.Equal(t, "no-store", h.Get("Cache-Control"))
	assert.Empty(t, h.Get("Strict-Transport-Security"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSecurityHeadersMiddleware_HSTSInProduction(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(true)

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil))

	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	// Only API routes are marked uncacheable.
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	h := CORS([]string{"https://app.linksight.io"}, false)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/premium/actions", nil)
	req.Header.Set("Origin", "https://app.linksight.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.linksight.io", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORS_RejectsNonCanonicalRequestHeaders(t *testing.T) {
	h := CORS([]string{"https://app.linksight.io"}, false)(okHandler())

	// Browsers send the list lowercased and sorted without spaces.
	req := httptest.NewRequest(http.MethodOptions, "/api/premium/actions", nil)
	req.Header.Set("Origin", "https://app.linksight.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_IgnoresUnknownOrigin(t *testing.T) {
	h := CORS([]string{"https://app.linksight.io"}, false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/premium/limits", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}
