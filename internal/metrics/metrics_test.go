package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(MetricUserCreated)

	if got := m.Value(MetricUserCreated); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLockConflict)
	m.Add(MetricSessionsReset, 3)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
}

func TestConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSessionValidated)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSessionValidated); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBucketCorrectness(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricPermissionLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricPermissionLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestObserveIgnoresCounterIDs(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Observe(MetricUserCreated, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricUserCreated]; ok {
		t.Fatal("counter id must not produce a histogram")
	}
	if _, ok := snap.Counters[MetricValidateLatency]; ok {
		t.Fatal("histogram id must not appear as a counter")
	}
}

func TestSnapshotConsistency(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Inc(MetricEmailAdded)
	m.Add(MetricSessionsReset, 2)
	m.Observe(MetricValidateLatency, 2*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricEmailAdded] != 1 {
		t.Fatalf("expected MetricEmailAdded=1 got %d", snap.Counters[MetricEmailAdded])
	}
	if snap.Counters[MetricSessionsReset] != 2 {
		t.Fatalf("expected MetricSessionsReset=2 got %d", snap.Counters[MetricSessionsReset])
	}
	if snap.Histograms[MetricValidateLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLatency][0])
	}
}
