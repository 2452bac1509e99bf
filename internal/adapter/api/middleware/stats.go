package middleware

import (
	"net/http"

	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
)

// Stats records every handled request into the injected runtime counters.
func Stats(stats *metrics.RuntimeStats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stats.Record(r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
