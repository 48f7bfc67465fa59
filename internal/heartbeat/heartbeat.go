package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/angeloszaimis/heartbeat-agent/internal/counterstore"
	"github.com/angeloszaimis/heartbeat-agent/internal/metrics"
	"github.com/angeloszaimis/heartbeat-agent/internal/reporter"
)

// CounterReader reads the outstanding counter. It must not fail.
type CounterReader interface {
	Read(ctx context.Context, key string) counterstore.Reading
}

// ReportSender delivers one report, best effort.
type ReportSender interface {
	Send(ctx context.Context, report reporter.Report) reporter.Result
}

// Emitter receives metric events. Emit must not block.
type Emitter interface {
	Emit(event metrics.MetricEvent)
}

type Config struct {
	Identity     string
	CounterKey   string
	Interval     time.Duration
	Align        bool
	MaxInFlight  int
	DrainTimeout time.Duration
}

type Option func(*Heartbeat)

// WithEmitter sends tick, read and report events to e.
func WithEmitter(e Emitter) Option {
	return func(h *Heartbeat) {
		h.emitter = e
	}
}

// WithClock replaces time.Now for alignment and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Heartbeat) {
		h.now = now
	}
}

type Heartbeat struct {
	cfg     Config
	store   CounterReader
	sender  ReportSender
	emitter Emitter
	logger  *slog.Logger
	pool    *ants.Pool
	now     func() time.Time
}

func New(cfg Config, store CounterReader, sender ReportSender, logger *slog.Logger, opts ...Option) (*Heartbeat, error) {
	switch {
	case cfg.Identity == "":
		return nil, errors.New("heartbeat: identity is required")
	case cfg.CounterKey == "":
		return nil, errors.New("heartbeat: counter key is required")
	case cfg.Interval <= 0:
		return nil, errors.New("heartbeat: interval must be positive")
	case cfg.MaxInFlight < 1:
		return nil, errors.New("heartbeat: max in flight must be at least 1")
	}

	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}

	h := &Heartbeat{
		cfg:    cfg,
		store:  store,
		sender: sender,
		logger: logger.With(slog.String("component", "heartbeat")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	pool, err := ants.NewPool(cfg.MaxInFlight,
		ants.WithNonblocking(true),
		ants.WithLogger(poolLogger{h.logger}),
		ants.WithPanicHandler(func(p any) {
			h.logger.Error("Tick panicked", slog.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: create tick pool: %w", err)
	}
	h.pool = pool

	return h, nil
}

// Run aligns to the next second boundary if configured, then ticks until
// ctx is cancelled. In-flight ticks get DrainTimeout to finish. Run may be
// called once per Heartbeat.
func (h *Heartbeat) Run(ctx context.Context) error {
	defer h.release()

	h.logger.Info("Heartbeat started",
		slog.String("identity", h.cfg.Identity),
		slog.String("counter_key", h.cfg.CounterKey),
		slog.Duration("interval", h.cfg.Interval),
		slog.Int("max_in_flight", h.cfg.MaxInFlight))

	if h.cfg.Align {
		delay := AlignDelay(h.now(), time.Second)
		h.logger.Debug("Aligning to second boundary", slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			h.logger.Info("Heartbeat stopped before first tick")
			return nil
		case <-timer.C:
		}
	}

	// Arm the ticker before the first tick's work starts.
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	h.dispatch(tickCtx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Heartbeat stopped")
			return nil
		case <-ticker.C:
			h.dispatch(tickCtx)
		}
	}
}

// InFlight returns the number of ticks currently running.
func (h *Heartbeat) InFlight() int {
	return h.pool.Running()
}

func (h *Heartbeat) dispatch(ctx context.Context) {
	h.emit(metrics.MetricEvent{Type: metrics.EventTickFired, Timestamp: h.now()})

	err := h.pool.Submit(func() {
		h.Tick(ctx)
	})
	if err == nil {
		return
	}

	h.emit(metrics.MetricEvent{Type: metrics.EventTickDropped, Timestamp: h.now()})
	if errors.Is(err, ants.ErrPoolOverload) {
		h.logger.Warn("Tick dropped, previous ticks still in flight",
			slog.Int("in_flight", h.pool.Running()))
		return
	}
	h.logger.Error("Tick could not be scheduled", slog.Any("err", err))
}

// Tick runs one read-and-report cycle and returns the send result. It
// makes exactly one send attempt.
func (h *Heartbeat) Tick(ctx context.Context) reporter.Result {
	reading := h.store.Read(ctx, h.cfg.CounterKey)
	h.emit(metrics.MetricEvent{
		Type:        metrics.EventCounterRead,
		Timestamp:   h.now(),
		Outstanding: reading.Value,
		Failure:     string(reading.Failure),
	})

	report := reporter.NewReport(h.cfg.Identity, h.now(), reading.Value)
	result := h.sender.Send(ctx, report)
	h.emit(metrics.MetricEvent{
		Type:       metrics.EventReportCompleted,
		Timestamp:  h.now(),
		Outcome:    result.Outcome.String(),
		StatusCode: result.StatusCode,
		Duration:   result.Latency,
	})

	attrs := []any{
		slog.Int64("k", report.Timestamp),
		slog.Int64("a", report.OutstandingCount),
		slog.Duration("latency", result.Latency),
	}

	switch result.Outcome {
	case reporter.OutcomeSuccess:
		if result.OK() {
			h.logger.Debug("Report sent", append(attrs, slog.Int("status", result.StatusCode))...)
		} else {
			h.logger.Warn("Controller rejected report", append(attrs, slog.Int("status", result.StatusCode))...)
		}
	case reporter.OutcomeTimeout:
		h.logger.Warn("Report timed out", append(attrs, slog.Any("err", result.Err))...)
	default:
		h.logger.Warn("Report failed", append(attrs, slog.Any("err", result.Err))...)
	}

	return result
}

func (h *Heartbeat) emit(event metrics.MetricEvent) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(event)
}

func (h *Heartbeat) release() {
	if err := h.pool.ReleaseTimeout(h.cfg.DrainTimeout); err != nil {
		h.logger.Warn("In-flight ticks did not finish before shutdown",
			slog.Duration("drain_timeout", h.cfg.DrainTimeout),
			slog.Any("err", err))
	}
}

type poolLogger struct {
	logger *slog.Logger
}

func (l poolLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), slog.String("source", "ants"))
}
