package main

import (
	"net/http"

	"github.com/angeloszaimis/heartbeat-agent/internal/metrics"
)

func setupRouter(collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", collector.MetricsHandler())
	mux.HandleFunc("/stats", collector.StatsHandler())
	mux.HandleFunc("/healthz", collector.HealthHandler())

	return mux
}
