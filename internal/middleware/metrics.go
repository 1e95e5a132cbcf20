package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// MetricsAuthMiddleware provides basic authentication for the metrics endpoint.
type MetricsAuthMiddleware struct {
	userHash [sha256.Size]byte
	passHash [sha256.Size]byte
	enabled  bool
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
// If both username and password are empty, authentication is disabled.
func NewMetricsAuthMiddleware(username, password string) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		userHash: sha256.Sum256([]byte(username)),
		passHash: sha256.Sum256([]byte(password)),
		enabled:  username != "" || password != "",
	}
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !m.matches(user, pass) {
			m.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// matches compares fixed-length digests so the comparison time does not
// depend on the length of the configured credentials.
func (m *MetricsAuthMiddleware) matches(user, pass string) bool {
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	userMatch := subtle.ConstantTimeCompare(u[:], m.userHash[:]) == 1
	passMatch := subtle.ConstantTimeCompare(p[:], m.passHash[:]) == 1
	return userMatch && passMatch
}

// unauthorized sends a 401 response with WWW-Authenticate header.
func (m *MetricsAuthMiddleware) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="linksight-metrics"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
