package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 1000

type Metrics struct {
	mutex           sync.RWMutex
	ticks           int64
	dropped         int64
	completed       int64
	storeFailures   map[string]int64
	outcomes        map[string]int64
	statusCodes     map[int]int64
	latencies       []time.Duration
	lastOutstanding int64
	lastTick        time.Time
	lastReport      time.Time
	startTime       time.Time
}

type Snapshot struct {
	Uptime          time.Duration    `json:"uptime"`
	Ticks           int64            `json:"ticks"`
	DroppedTicks    int64            `json:"dropped_ticks"`
	CompletedTicks  int64            `json:"completed_ticks"`
	StoreFailures   map[string]int64 `json:"store_failures"`
	Reports         ReportMetrics    `json:"reports"`
	LastOutstanding int64            `json:"last_outstanding"`
	LastTick        time.Time        `json:"last_tick"`
	LastReport      time.Time        `json:"last_report"`
}

type ReportMetrics struct {
	Outcomes    map[string]int64 `json:"outcomes"`
	StatusCodes map[int]int64    `json:"status_codes"`
	AvgLatency  time.Duration    `json:"avg_latency"`
	P50Latency  time.Duration    `json:"p50_latency"`
	P95Latency  time.Duration    `json:"p95_latency"`
	P99Latency  time.Duration    `json:"p99_latency"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		storeFailures: make(map[string]int64),
		outcomes:      make(map[string]int64),
		statusCodes:   make(map[int]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordTick(at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ticks++
	m.lastTick = at
}

func (m *Metrics) RecordDrop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dropped++
}

// RecordCounterRead stores the last value read. A non-empty failure is
// counted per category.
func (m *Metrics) RecordCounterRead(outstanding int64, failure string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastOutstanding = outstanding
	if failure != "" {
		m.storeFailures[failure]++
	}
}

func (m *Metrics) RecordReport(at time.Time, outcome string, statusCode int, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.completed++
	m.lastReport = at
	m.outcomes[outcome]++
	if statusCode != 0 {
		m.statusCodes[statusCode]++
	}

	m.latencies = append(m.latencies, latency)
	if len(m.latencies) > maxLatencySamples {
		m.latencies = m.latencies[1:]
	}
}

// Completed returns how many ticks ran to the end of their report.
func (m *Metrics) Completed() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.completed
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:          time.Since(m.startTime),
		Ticks:           m.ticks,
		DroppedTicks:    m.dropped,
		CompletedTicks:  m.completed,
		StoreFailures:   copyMap(m.storeFailures),
		LastOutstanding: m.lastOutstanding,
		LastTick:        m.lastTick,
		LastReport:      m.lastReport,
		Reports: ReportMetrics{
			Outcomes:    copyMap(m.outcomes),
			StatusCodes: copyMap(m.statusCodes),
		},
	}

	if len(m.latencies) > 0 {
		sorted := make([]time.Duration, len(m.latencies))
		copy(sorted, m.latencies)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.Reports.AvgLatency = average(sorted)
		snap.Reports.P50Latency = percentile(sorted, 0.50)
		snap.Reports.P95Latency = percentile(sorted, 0.95)
		snap.Reports.P99Latency = percentile(sorted, 0.99)
	}

	return snap
}

func copyMap[K comparable](src map[K]int64) map[K]int64 {
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
