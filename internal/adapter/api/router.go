package api

import (
	"encoding/json"
	"net/http"

	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
)

// NewIngestRouter wires the accept-boundary routes.
func NewIngestRouter(ingestHandler http.Handler, stats *metrics.RuntimeStats) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /ingest", ingestHandler)
	mux.HandleFunc("GET /healthz", healthz)
	mux.Handle("GET /status", statusHandler(stats))

	return mux
}

// NewWorkerRouter wires the delivery-boundary routes.
func NewWorkerRouter(processHandler http.Handler, stats *metrics.RuntimeStats) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /process", processHandler)
	mux.HandleFunc("GET /healthz", healthz)
	mux.Handle("GET /status", statusHandler(stats))

	return mux
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func statusHandler(stats *metrics.RuntimeStats) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.Snapshot())
	})
}
