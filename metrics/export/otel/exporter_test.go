package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authdb"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authdb.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authdb.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authdb.MetricsSnapshot{
		Counters:   make(map[authdb.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authdb.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authdb-test")

	src := &fakeSource{
		snapshot: authdb.MetricsSnapshot{
			Counters: map[authdb.MetricID]uint64{
				authdb.MetricSessionValidated: 3,
			},
			Histograms: map[authdb.MetricID][]uint64{
				authdb.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	values := make(map[string]int64)
	buckets := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				if m.Name != "authdb_session_validate_latency_seconds_bucket" {
					continue
				}
				for _, dp := range data.DataPoints {
					le, _ := dp.Attributes.Value("le")
					buckets[le.AsString()] = dp.Value
				}
			}
		}
	}
	if got := values["authdb_session_validated_total"]; got != 3 {
		t.Fatalf("expected validated counter 3, got %d", got)
	}
	if got := values["authdb_session_validate_latency_seconds_count"]; got != 8 {
		t.Fatalf("expected histogram count 8, got %d", got)
	}
	if got := values["authdb_audit_dropped_total"]; got != 1 {
		t.Fatalf("expected audit dropped 1, got %d", got)
	}
	if len(buckets) != 8 || buckets["0.005"] != 1 || buckets["0.1"] != 5 || buckets["+Inf"] != 8 {
		t.Fatalf("unexpected cumulative buckets %v", buckets)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authdb-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewOTelExporter(meter, nil); err == nil {
		t.Fatal("expected error for nil db")
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err == nil {
		t.Fatal("expected error for nil meter")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authdb-test")

	src := &fakeSource{
		snapshot: authdb.MetricsSnapshot{
			Counters: map[authdb.MetricID]uint64{
				authdb.MetricSessionValidated: 1,
			},
			Histograms: map[authdb.MetricID][]uint64{
				authdb.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authdb.MetricSessionValidated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
