package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/portalauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[portalauth.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() portalauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := portalauth.MetricsSnapshot{
		Counters:   make(map[portalauth.MetricID]uint64, len(f.counters)),
		Histograms: map[portalauth.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[portalauth.MetricLoginLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T, src Source) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exp, err := NewExporter(provider.Meter("portalauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	t.Cleanup(func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	src := &fakeSource{
		counters: map[portalauth.MetricID]uint64{portalauth.MetricLoginSuccess: 3},
		latency:  []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped:  2,
	}
	got := collect(t, newReader(t, src))

	if got["portalauth_login_success_total"] != 3 {
		t.Fatalf("expected login success 3, got %d", got["portalauth_login_success_total"])
	}
	if got["portalauth_audit_dropped_total"] != 2 {
		t.Fatalf("expected dispatcher drop count 2, got %d", got["portalauth_audit_dropped_total"])
	}
	if got["portalauth_login_latency_seconds_bucket_le_0_05"] != 1 {
		t.Fatalf("expected first bucket 1, got %d", got["portalauth_login_latency_seconds_bucket_le_0_05"])
	}
	if got["portalauth_login_latency_seconds_bucket_le_inf"] != 8 {
		t.Fatalf("expected cumulative inf bucket 8, got %d", got["portalauth_login_latency_seconds_bucket_le_inf"])
	}
	if got["portalauth_login_latency_seconds_count"] != 8 {
		t.Fatalf("expected count 8, got %d", got["portalauth_login_latency_seconds_count"])
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	provider := sdkmetric.NewMeterProvider()
	if _, err := NewExporter(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	src := &fakeSource{counters: map[portalauth.MetricID]uint64{}}
	reader := newReader(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[portalauth.MetricLogout] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterCloseNil(t *testing.T) {
	var e *Exporter
	if err := e.Close(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
