package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestRecorder receives one observation per completed HTTP request.
type RequestRecorder interface {
	RecordRequest(method, path, status string, duration time.Duration)
}

// Metrics returns a middleware that records request metrics. The path label
// is the chi route pattern, not the raw URL, to keep cardinality bounded.
func Metrics(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				if pattern := routeCtx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			recorder.RecordRequest(r.Method, path, strconv.Itoa(wrapped.status), time.Since(start))
		})
	}
}
