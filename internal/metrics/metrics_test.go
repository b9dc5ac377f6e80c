package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(MetricObtainPair)

	if got := m.Value(MetricObtainPair); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("expected empty snapshot when disabled")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRevoke)
	m.Add(MetricFlushExpired, 3)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Value(MetricRevoke) != 0 || m.Enabled() {
		t.Fatal("nil metrics must record nothing")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(MetricObtainPair)
	m.Inc(MetricObtainPair)
	m.Add(MetricFlushExpired, 5)

	if got := m.Value(MetricObtainPair); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricFlushExpired); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	// One observation per bucket, each on its inclusive bound, plus one
	// in the overflow bucket.
	observations := append(LatencyBounds[:], 30*time.Millisecond)
	for _, d := range observations {
		m.Observe(MetricValidateLatency, d)
	}
	// Only the validate latency metric carries a histogram.
	m.Observe(MetricRevoke, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != BucketCount {
		t.Fatalf("expected %d buckets, got %d", BucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricRevoke]; ok {
		t.Fatal("unexpected histogram for revoke counter")
	}
	var want time.Duration
	for _, d := range observations {
		want += d
	}
	if got := snap.HistogramSums[MetricValidateLatency]; got != want {
		t.Fatalf("expected sum %s, got %s", want, got)
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Inc(MetricValidateSuccess)
	m.Inc(MetricValidateFailure)
	m.Inc(MetricValidateFailure)
	m.Observe(MetricValidateLatency, 20*time.Microsecond)

	snap := m.Snapshot()

	if snap.Counters[MetricValidateSuccess] != 1 {
		t.Fatalf("expected MetricValidateSuccess=1 got %d", snap.Counters[MetricValidateSuccess])
	}
	if snap.Counters[MetricValidateFailure] != 2 {
		t.Fatalf("expected MetricValidateFailure=2 got %d", snap.Counters[MetricValidateFailure])
	}
	if snap.Histograms[MetricValidateLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLatency][0])
	}
}

func TestLatencyIsNotACounter(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(MetricValidateLatency)
	m.Observe(MetricValidateLatency, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Counters[MetricValidateLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
	if _, ok := snap.Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram must be absent when latency is disabled")
	}
}
