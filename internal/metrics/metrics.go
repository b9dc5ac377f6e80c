package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter.
type MetricID uint16

const (
	MetricObtainPair MetricID = iota
	MetricObtainSliding
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRotated
	MetricSlidingRenewSuccess
	MetricSlidingRenewFailure
	MetricVerifySuccess
	MetricVerifyFailure
	MetricValidateSuccess
	MetricValidateFailure
	MetricTokenExpired
	MetricTokenRevokedRejected
	MetricRevoke
	MetricRevokeNoop
	MetricRevokeAll
	MetricFlushExpired
	MetricIdentityFailure
	MetricIntegrityViolation
	MetricLedgerUnavailable
	MetricValidateLatency
	MetricIDCount
)

// LatencyBounds are the inclusive upper bounds of the latency buckets. A
// final overflow bucket catches everything slower. Local signature checks
// land in the first buckets; ledger round trips land in the millisecond ones.
var LatencyBounds = [...]time.Duration{
	50 * time.Microsecond,
	100 * time.Microsecond,
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
}

// BucketCount is len(LatencyBounds) plus the overflow bucket.
const BucketCount = len(LatencyBounds) + 1

// Config selects which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// counter sits alone on its cache line so hot counters updated from
// different cores do not contend.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds the counters and the validate latency histogram. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	enabled bool
	latency bool
	counts  [MetricIDCount]counter
	buckets [BucketCount]atomic.Uint64
	sum     atomic.Int64
}

// Snapshot is a point-in-time copy of all metrics. Histogram buckets are
// per-bucket counts, not cumulative.
type Snapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// New creates a Metrics instance. When cfg.Enabled is false every call is a no-op.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

func (m *Metrics) Add(id MetricID, n uint64) {
	if !m.Enabled() || id >= MetricIDCount || id == MetricValidateLatency || n == 0 {
		return
	}
	m.counts[id].Add(n)
}

// Observe records d. MetricValidateLatency is the only histogram; other ids
// are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.buckets[bucketFor(d)].Add(1)
	m.sum.Add(int64(d))
}

// Value returns the current counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counts[id].Load()
}

// Snapshot copies every counter and, when enabled, the latency histogram.
// Counters are read one by one, so a snapshot taken under load is not a
// single atomic cut.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if id == MetricValidateLatency {
			continue
		}
		s.Counters[id] = m.counts[id].Load()
	}
	if m.latency {
		b := make([]uint64, BucketCount)
		for i := range m.buckets {
			b[i] = m.buckets[i].Load()
		}
		s.Histograms[MetricValidateLatency] = b
		s.HistogramSums[MetricValidateLatency] = time.Duration(m.sum.Load())
	}
	return s
}

func bucketFor(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
