// Package httpserver runs the agent's optional local listener that exposes
// health, stats and Prometheus metrics, with graceful shutdown.
package httpserver
