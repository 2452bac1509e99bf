package metrics

import (
	"strings"
	"sync/atomic"
	"time"
)

// RuntimeStats is an explicitly injected per-process counter object: service
// start time, request count and last request time. It replaces ambient
// global state; its lifecycle is tied to the process that constructs it.
type RuntimeStats struct {
	service       string
	start         time.Time
	requestsTotal atomic.Int64
	lastRequestAt atomic.Value // time.Time
}

// NewRuntimeStats creates stats for one named service instance.
func NewRuntimeStats(service string) *RuntimeStats {
	return &RuntimeStats{service: service, start: time.Now().UTC()}
}

// Record counts one request. Health and metrics probes are skipped so they
// do not pollute the counters.
func (s *RuntimeStats) Record(path string) {
	if strings.HasPrefix(path, "/healthz") || strings.HasPrefix(path, "/metrics") || strings.HasPrefix(path, "/status") {
		return
	}
	s.requestsTotal.Add(1)
	s.lastRequestAt.Store(time.Now().UTC())
}

// Snapshot is the JSON shape served by GET /status.
type Snapshot struct {
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RequestsTotal int64  `json:"requests_total"`
	LastRequestAt string `json:"last_request_at,omitempty"`
}

// Snapshot returns the current counter values.
func (s *RuntimeStats) Snapshot() Snapshot {
	snap := Snapshot{
		Service:       s.service,
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
		RequestsTotal: s.requestsTotal.Load(),
	}
	if last, ok := s.lastRequestAt.Load().(time.Time); ok {
		snap.LastRequestAt = last.Format(time.RFC3339)
	}
	return snap
}
