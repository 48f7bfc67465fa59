package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventTickFired       EventType = "tick_fired"
	EventTickDropped     EventType = "tick_dropped"
	EventCounterRead     EventType = "counter_read"
	EventReportCompleted EventType = "report_completed"
)

type MetricEvent struct {
	Type        EventType
	Timestamp   time.Time
	Outstanding int64
	Failure     string
	Outcome     string
	StatusCode  int
	Duration    time.Duration
}

type Collector struct {
	eventCh    chan MetricEvent
	metrics    *Metrics
	prometheus *Prometheus
	logger     *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:    make(chan MetricEvent, bufferSize),
		metrics:    NewMetrics(),
		prometheus: NewPrometheus(),
		logger:     logger,
	}
}

// Emit queues event without blocking. Events are dropped when the buffer
// is full.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventTickFired:
		c.metrics.RecordTick(event.Timestamp)

	case EventTickDropped:
		c.metrics.RecordDrop()

	case EventCounterRead:
		c.metrics.RecordCounterRead(event.Outstanding, event.Failure)

	case EventReportCompleted:
		c.metrics.RecordReport(event.Timestamp, event.Outcome, event.StatusCode, event.Duration)
	}

	c.prometheus.observe(event)
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}

func (c *Collector) Prometheus() *Prometheus {
	return c.prometheus
}
