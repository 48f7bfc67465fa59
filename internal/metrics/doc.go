// Package metrics records what the heartbeat loop is doing.
//
// It uses a channel-based event pipeline: the heartbeat emits events for
// fired ticks, dropped ticks, counter reads and completed reports without
// blocking, and a collector goroutine folds them into:
//   - an in-memory snapshot (counts, last outstanding value, report latency
//     percentiles) served as JSON
//   - Prometheus series on a private registry served in exposition format
//
// Example usage:
//
//	collector := metrics.NewCollector(256, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventReportCompleted,
//		Outcome:  "success",
//		Duration: 12 * time.Millisecond,
//	})
//
// On context cancellation the collector drains buffered events before it
// stops.
package metrics
