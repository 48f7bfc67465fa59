package heartbeat_test

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/heartbeat-agent/internal/counterstore"
	"github.com/angeloszaimis/heartbeat-agent/internal/metrics"
	"github.com/angeloszaimis/heartbeat-agent/internal/reporter"
)

type fakeStore struct {
	mu      sync.Mutex
	reading counterstore.Reading
	calls   int
	keys    []string
}

func (f *fakeStore) Read(_ context.Context, key string) counterstore.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, key)
	return f.reading
}

func (f *fakeStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSender struct {
	mu      sync.Mutex
	delay   time.Duration
	result  reporter.Result
	reports []reporter.Report
	started []time.Time
}

func (f *fakeSender) Send(ctx context.Context, report reporter.Report) reporter.Result {
	f.mu.Lock()
	f.reports = append(f.reports, report)
	f.started = append(f.started, time.Now())
	delay := f.delay
	result := f.result
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
	return result
}

func (f *fakeSender) Reports() []reporter.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reporter.Report(nil), f.reports...)
}

func (f *fakeSender) Started() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.started...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []metrics.MetricEvent
}

func (r *recordingEmitter) Emit(event metrics.MetricEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Count(t metrics.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recordingEmitter) Outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == metrics.EventReportCompleted {
			out = append(out, e.Outcome)
		}
	}
	return out
}
