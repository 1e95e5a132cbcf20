package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute labels requests that no registered pattern matched.
const UnmatchedRoute = "unmatched"

const metricsRoute = "GET /metrics"

// Router resolves the pattern that will serve a request. *http.ServeMux
// satisfies it.
type Router interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// Middleware records request count, latency and in-flight requests.
//
// Series are labelled by the mux pattern ("GET /api/premium/usage"), never the
// raw path, so label cardinality is bounded by the route table.
func Middleware(routes Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		var instrumented sync.Map // route -> http.Handler

		forRoute := func(route string) http.Handler {
			if h, ok := instrumented.Load(route); ok {
				return h.(http.Handler)
			}
			labels := prometheus.Labels{"route": route}
			h := promhttp.InstrumentHandlerDuration(HTTPRequestDuration.MustCurryWith(labels),
				promhttp.InstrumentHandlerCounter(HTTPRequestsTotal.MustCurryWith(labels), next))
			actual, _ := instrumented.LoadOrStore(route, h)
			return actual.(http.Handler)
		}

		return promhttp.InstrumentHandlerInFlight(HTTPRequestsInFlight,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				route := RouteLabel(routes, r)
				if route == metricsRoute {
					next.ServeHTTP(w, r)
					return
				}
				forRoute(route).ServeHTTP(w, r)
			}))
	}
}

// RouteLabel returns the pattern routes would use for r, or UnmatchedRoute.
func RouteLabel(routes Router, r *http.Request) string {
	if _, pattern := routes.Handler(r); pattern != "" {
		return pattern
	}
	return UnmatchedRoute
}
