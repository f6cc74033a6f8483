package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/twofactor"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot twofactor.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() twofactor.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := twofactor.MetricsSnapshot{
		Counters:   make(map[twofactor.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[twofactor.MetricID][]uint64, len(f.snapshot.Histograms)),
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
	meter := provider.Meter("twofactor-test")

	src := &fakeSource{
		snapshot: twofactor.MetricsSnapshot{
			Counters: map[twofactor.MetricID]uint64{
				twofactor.MetricTOTPSuccess: 3,
			},
			Histograms: map[twofactor.MetricID][]uint64{
				twofactor.MetricGateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
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

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}
	if values["twofactor_totp_success_total"] != 3 {
		t.Fatalf("expected totp success 3, got %d", values["twofactor_totp_success_total"])
	}
	if values["twofactor_gate_latency_seconds_bucket_le_inf"] != 8 {
		t.Fatalf("expected cumulative +Inf bucket 8, got %d", values["twofactor_gate_latency_seconds_bucket_le_inf"])
	}
	if values["twofactor_audit_dropped_total"] != 1 {
		t.Fatalf("expected audit dropped 1, got %d", values["twofactor_audit_dropped_total"])
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("twofactor-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("twofactor-test")

	src := &fakeSource{
		snapshot: twofactor.MetricsSnapshot{
			Counters: map[twofactor.MetricID]uint64{
				twofactor.MetricTOTPSuccess: 1,
			},
			Histograms: map[twofactor.MetricID][]uint64{
				twofactor.MetricGateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
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
			src.snapshot.Counters[twofactor.MetricTOTPSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
