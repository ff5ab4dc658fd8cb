package usersvc

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginUnknownAccount
	MetricLoginLocked
	MetricLockoutTriggered
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshForbidden
	MetricResolveSuccess
	MetricResolveFailure
	MetricTokenRevoked
	MetricAccountCreationSuccess
	MetricAccountCreationDuplicate
	MetricProfileUpdated
	MetricPasswordChanged
	MetricPasswordRehashed
	MetricLogout
	MetricAccountUnlocked
	MetricLedgerAppendFailure
	MetricStoreFailure

	// Latency histograms follow the counters.
	MetricLoginLatency
	MetricResolveLatency
	metricIDCount
)

const (
	firstLatencyMetric = MetricLoginLatency
	latencyMetricCount = int(metricIDCount - firstLatencyMetric)
)

// LatencyBuckets are the upper bounds of the latency histogram buckets.
// Observations above the last bound land in one overflow bucket.
var LatencyBuckets = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// LatencyBucketCount is the number of buckets in a histogram snapshot,
// overflow included.
const LatencyBucketCount = len(LatencyBuckets) + 1

const cacheLineSize = 64

type paddedCounter struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets [LatencyBucketCount]atomic.Uint64
	count   atomic.Uint64
	sumNano atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	h.buckets[bucketIndex(d)].Add(1)
	h.count.Add(1)
	h.sumNano.Add(int64(d))
}

func (h *latencyHistogram) snapshot() HistogramSnapshot {
	out := HistogramSnapshot{Buckets: make([]uint64, LatencyBucketCount)}
	for i := range h.buckets {
		out.Buckets[i] = h.buckets[i].Load()
	}
	out.Count = h.count.Load()
	out.Sum = time.Duration(h.sumNano.Load())
	return out
}

// Metrics holds lock-free engine counters and latency histograms. A nil or
// disabled Metrics ignores every update.
type Metrics struct {
	enabled   bool
	latency   bool
	counters  [firstLatencyMetric]paddedCounter
	latencies [latencyMetricCount]latencyHistogram
}

// HistogramSnapshot is a copy of one latency histogram. Buckets are
// per-bucket counts, not cumulative.
type HistogramSnapshot struct {
	Buckets []uint64
	Count   uint64
	Sum     time.Duration
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
// Histograms is empty unless latency histograms are enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID]HistogramSnapshot{},
	}
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

// IsLatencyMetric reports whether id names a histogram rather than a
// counter.
func IsLatencyMetric(id MetricID) bool {
	return id >= firstLatencyMetric && id < metricIDCount
}

// Inc adds one to the counter id. Histogram IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= firstLatencyMetric {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram id. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || !IsLatencyMetric(id) {
		return
	}
	m.latencies[id-firstLatencyMetric].observe(d)
}

// Value returns the current value of the counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= firstLatencyMetric {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies the current values. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return emptySnapshot()
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(firstLatencyMetric)),
		Histograms: make(map[MetricID]HistogramSnapshot, latencyMetricCount),
	}
	for id := MetricID(0); id < firstLatencyMetric; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.latency {
		for i := range m.latencies {
			s.Histograms[firstLatencyMetric+MetricID(i)] = m.latencies[i].snapshot()
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBuckets {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBuckets)
}
