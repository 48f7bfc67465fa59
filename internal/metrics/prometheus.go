package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heartbeat_agent"

// Prometheus mirrors collector events into Prometheus series on its own
// registry, so tests and multiple collectors never clash on the default one.
type Prometheus struct {
	registry      *prometheus.Registry
	ticks         prometheus.Counter
	dropped       prometheus.Counter
	storeFailures *prometheus.CounterVec
	reports       *prometheus.CounterVec
	latency       prometheus.Histogram
	outstanding   prometheus.Gauge
	lastReport    prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Heartbeat ticks fired by the timer.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_dropped_total",
			Help:      "Ticks skipped because too many were already in flight.",
		}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_failures_total",
			Help:      "Counter reads that fell back to zero, by failure category.",
		}, []string{"category"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "sends_total",
			Help:      "Reports sent to the controller, by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Time spent sending a report to the controller.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_requests",
			Help:      "Last outstanding request count read from the store.",
		}),
		lastReport: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time of the last completed report.",
		}),
	}

	p.registry.MustRegister(
		p.ticks,
		p.dropped,
		p.storeFailures,
		p.reports,
		p.latency,
		p.outstanding,
		p.lastReport,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) observe(event MetricEvent) {
	switch event.Type {
	case EventTickFired:
		p.ticks.Inc()
	case EventTickDropped:
		p.dropped.Inc()
	case EventCounterRead:
		p.outstanding.Set(float64(event.Outstanding))
		if event.Failure != "" {
			p.storeFailures.WithLabelValues(event.Failure).Inc()
		}
	case EventReportCompleted:
		p.reports.WithLabelValues(event.Outcome).Inc()
		p.latency.Observe(event.Duration.Seconds())
		p.lastReport.Set(float64(event.Timestamp.UnixNano()) / float64(time.Second))
	}
}
