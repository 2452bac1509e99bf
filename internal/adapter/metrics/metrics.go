package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestMetrics holds the Prometheus metrics for the ingestion service.
type IngestMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	PublishFailures prometheus.Counter
	TextBytesTotal  prometheus.Counter
}

// NewIngestMetrics initializes and registers the ingestion metrics.
func NewIngestMetrics() *IngestMetrics {
	return &IngestMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "log_pipeline",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of ingest requests by outcome.",
		}, []string{"outcome"}), // outcome: accepted, validation_error, invalid_json, unsupported_content_type, payload_too_large, service_unavailable
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "log_pipeline",
			Subsystem: "ingest",
			Name:      "publish_failures_total",
			Help:      "Total number of failed envelope publishes.",
		}),
		TextBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "log_pipeline",
			Subsystem: "ingest",
			Name:      "text_bytes_total",
			Help:      "Total number of accepted log text bytes.",
		}),
	}
}

// WorkerMetrics holds the Prometheus metrics for the worker service.
type WorkerMetrics struct {
	DeliveriesTotal  *prometheus.CounterVec
	DeadLettersTotal prometheus.Counter
	ProcessDuration  prometheus.Histogram
}

// NewWorkerMetrics initializes and registers the worker metrics.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "log_pipeline",
			Subsystem: "worker",
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts by outcome.",
		}, []string{"outcome"}), // outcome: processed, skipped_duplicate, nacked, dead_lettered
		DeadLettersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "log_pipeline",
			Subsystem: "worker",
			Name:      "dead_letters_total",
			Help:      "Total number of deliveries moved to the dead-letter stream.",
		}),
		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "log_pipeline",
			Subsystem: "worker",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing one delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
