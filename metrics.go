package teamauth

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter or histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLogout
	MetricLogoutAll
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshExpired
	MetricSessionCreated
	MetricSessionInvalidated
	MetricSessionPurged
	MetricInviteCreated
	MetricInviteAccepted
	MetricInviteRejected
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricRateLimitHit
	MetricNotificationFailure
	// MetricValidateLatency is the only histogram.
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of every latency bucket but the last,
// which catches everything slower.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// LatencyBucketCount is the number of buckets in a latency histogram, overflow included.
const LatencyBucketCount = len(latencyBounds) + 1

// LatencyBounds returns the finite bucket bounds shared by every latency histogram.
func LatencyBounds() []time.Duration {
	return append([]time.Duration(nil), latencyBounds[:]...)
}

// counterSlot keeps each counter on its own 64-byte cache line.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

type latencyHistogram struct {
	buckets [LatencyBucketCount]atomic.Uint64
	sumNs   atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	i := 0
	for i < len(latencyBounds) && d > latencyBounds[i] {
		i++
	}
	h.buckets[i].Add(1)
	h.sumNs.Add(int64(d))
}

func (h *latencyHistogram) snapshot() LatencyHistogram {
	out := LatencyHistogram{
		Buckets: make([]uint64, LatencyBucketCount),
		Sum:     time.Duration(h.sumNs.Load()),
	}
	for i := range h.buckets {
		out.Buckets[i] = h.buckets[i].Load()
		out.Count += out.Buckets[i]
	}
	return out
}

// Metrics holds lock-free engine counters. A nil or disabled Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool

	counters [metricIDCount]counterSlot
	validate latencyHistogram
}

// LatencyHistogram is a copy of one latency histogram. Buckets are per bucket, not
// cumulative, and line up with [LatencyBounds] plus a final overflow bucket.
type LatencyHistogram struct {
	Buckets []uint64
	Count   uint64
	Sum     time.Duration
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram. Latencies
// is empty unless latency histograms are enabled.
type MetricsSnapshot struct {
	Counters  map[MetricID]uint64
	Latencies map[MetricID]LatencyHistogram
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:  map[MetricID]uint64{},
		Latencies: map[MetricID]LatencyHistogram{},
	}
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricValidateLatency {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d for a histogram id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.validate.observe(d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricValidateLatency {
		return 0
	}
	return m.counters[id].n.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return emptySnapshot()
	}

	s := MetricsSnapshot{
		Counters:  make(map[MetricID]uint64, int(MetricValidateLatency)),
		Latencies: make(map[MetricID]LatencyHistogram, 1),
	}
	for id := MetricID(0); id < MetricValidateLatency; id++ {
		s.Counters[id] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		s.Latencies[MetricValidateLatency] = m.validate.snapshot()
	}
	return s
}
