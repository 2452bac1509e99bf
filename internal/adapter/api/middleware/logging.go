package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseWriter captures the HTTP status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging logs every request with its tenant and correlation identifiers, so
// an accepted log line can be traced from the access log through the worker.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
				attrs = append(attrs, "tenant_id", tenant)
			}
			if correlation := r.Header.Get("X-Request-ID"); correlation != "" {
				attrs = append(attrs, "correlation_id", correlation)
			}
			logger.Info("handled request", attrs...)
		})
	}
}
