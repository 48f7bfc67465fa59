package metrics_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/heartbeat-agent/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("event processing", func() {
		It("should fold tick events into the snapshot", func() {
			collector.Start(ctx)

			collector.Emit(metrics.MetricEvent{Type: metrics.EventTickFired, Timestamp: time.Now()})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventTickDropped, Timestamp: time.Now()})

			Eventually(func() int64 {
				return collector.Snapshot().DroppedTicks
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot().Ticks).To(Equal(int64(1)))
		})

		It("should mirror events into Prometheus", func() {
			collector.Start(ctx)

			collector.Emit(metrics.MetricEvent{Type: metrics.EventCounterRead, Outstanding: 7})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventCounterRead, Failure: "timeout-error"})
			collector.Emit(metrics.MetricEvent{
				Type:       metrics.EventReportCompleted,
				Timestamp:  time.Now(),
				Outcome:    "success",
				StatusCode: 200,
				Duration:   5 * time.Millisecond,
			})

			Eventually(func() int64 {
				return collector.Snapshot().CompletedTicks
			}).Should(Equal(int64(1)))

			expected := `
# HELP heartbeat_agent_report_sends_total Reports sent to the controller, by outcome.
# TYPE heartbeat_agent_report_sends_total counter
heartbeat_agent_report_sends_total{outcome="success"} 1
`
			Expect(testutil.GatherAndCompare(collector.Prometheus().Registry(),
				strings.NewReader(expected), "heartbeat_agent_report_sends_total")).To(Succeed())

			expected = `
# HELP heartbeat_agent_store_read_failures_total Counter reads that fell back to zero, by failure category.
# TYPE heartbeat_agent_store_read_failures_total counter
heartbeat_agent_store_read_failures_total{category="timeout-error"} 1
`
			Expect(testutil.GatherAndCompare(collector.Prometheus().Registry(),
				strings.NewReader(expected), "heartbeat_agent_store_read_failures_total")).To(Succeed())
		})

		It("should drain events on context cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.Emit(metrics.MetricEvent{Type: metrics.EventTickFired, Timestamp: time.Now()})
			}

			collector.Start(ctx)
			cancel()

			Eventually(func() int64 {
				return collector.Snapshot().Ticks
			}).Should(Equal(int64(5)))
		})

		It("should not block when the buffer is full", func() {
			small := metrics.NewCollector(1, log)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 10; i++ {
					small.Emit(metrics.MetricEvent{Type: metrics.EventTickFired})
				}
			}()
			Eventually(done).Should(BeClosed())
		})
	})

	Describe("handlers", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.Emit(metrics.MetricEvent{Type: metrics.EventCounterRead, Outstanding: 3})
			Eventually(func() int64 {
				return collector.Snapshot().LastOutstanding
			}).Should(Equal(int64(3)))

			rec := httptest.NewRecorder()
			collector.StatsHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap["last_outstanding"]).To(BeNumerically("==", 3))
		})

		It("should report unhealthy until a tick completes", func() {
			collector.Start(ctx)

			rec := httptest.NewRecorder()
			collector.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

			collector.Emit(metrics.MetricEvent{Type: metrics.EventReportCompleted, Outcome: "error"})
			Eventually(func() int {
				rec := httptest.NewRecorder()
				collector.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				return rec.Code
			}).Should(Equal(http.StatusOK))
		})

		It("should expose Prometheus metrics", func() {
			collector.Start(ctx)
			collector.Emit(metrics.MetricEvent{Type: metrics.EventTickFired, Timestamp: time.Now()})
			Eventually(func() int64 {
				return collector.Snapshot().Ticks
			}).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			collector.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("heartbeat_agent_ticks_total 1"))
		})
	})
})
