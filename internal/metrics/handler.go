package metrics

import (
	"encoding/json"
	"net/http"
)

// StatsHandler serves the in-memory snapshot as JSON.
func (c *Collector) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.metrics.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// HealthHandler answers 200 once a tick has completed and 503 before.
func (c *Collector) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c.metrics.Completed() == 0 {
			http.Error(w, "no heartbeat completed yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// MetricsHandler serves the Prometheus registry.
func (c *Collector) MetricsHandler() http.Handler {
	return c.prometheus.Handler()
}
