package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that allows the dashboard SPA to call the API from
// the given origins. An empty list disables cross-origin access.
func CORS(allowedOrigins []string, debug bool) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"Retry-After",
		},
		MaxAge: 300,
		Debug:  debug,
	})
	return c.Handler
}
