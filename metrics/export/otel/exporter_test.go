package otel

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dossier-crm/teamauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu      sync.Mutex
	metrics *teamauth.Metrics
	dropped uint64
}

func (f *fakeSource) MetricsSnapshot() teamauth.MetricsSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics.Snapshot()
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

// value returns the data point of name whose attributes contain le, or the only data
// point when le is empty.
func value(t *testing.T, rm metricdata.ResourceMetrics, name, le string) float64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if matchesLE(dp.Attributes, le) {
						return float64(dp.Value)
					}
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					if matchesLE(dp.Attributes, le) {
						return dp.Value
					}
				}
			}
		}
	}
	t.Fatalf("metric %s{le=%q} not collected", name, le)
	return 0
}

func matchesLE(set attribute.Set, le string) bool {
	if le == "" {
		return set.Len() == 0
	}
	v, ok := set.Value("le")
	return ok && v.AsString() == le
}

func TestExporterCollectsSnapshot(t *testing.T) {
	reader, provider := newReader(t)

	m := teamauth.NewMetrics(teamauth.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(teamauth.MetricLoginSuccess)
	m.Inc(teamauth.MetricLoginSuccess)
	m.Observe(teamauth.MetricValidateLatency, 20*time.Millisecond)
	m.Observe(teamauth.MetricValidateLatency, 280*time.Millisecond)
	src := &fakeSource{metrics: m, dropped: 4}

	exp, err := NewExporter(provider.Meter("teamauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
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

	checks := []struct {
		name, le string
		want     float64
	}{
		{"dossier_auth_login_success_total", "", 2},
		{"dossier_auth_validate_latency_seconds_count", "", 2},
		{"dossier_auth_validate_latency_seconds_sum", "", 0.3},
		{"dossier_auth_validate_latency_seconds_bucket", "0.005", 0},
		{"dossier_auth_validate_latency_seconds_bucket", "0.025", 1},
		{"dossier_auth_validate_latency_seconds_bucket", "0.5", 2},
		{"dossier_auth_validate_latency_seconds_bucket", "+Inf", 2},
		{"dossier_auth_audit_dropped_total", "", 4},
	}
	for _, c := range checks {
		if got := value(t, rm, c.name, c.le); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%s{le=%q}: expected %v, got %v", c.name, c.le, c.want, got)
		}
	}
}

func TestExporterOmitsDisabledHistogram(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{metrics: teamauth.NewMetrics(teamauth.MetricsConfig{Enabled: true})}

	exp, err := NewExporter(provider.Meter("teamauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "dossier_auth_validate_latency_seconds_count" {
				if data, ok := m.Data.(metricdata.Sum[int64]); ok && len(data.DataPoints) > 0 {
					t.Fatal("histogram observed while latency histograms are disabled")
				}
			}
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader(t)

	if _, err := NewExporter(provider.Meter("teamauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	m := teamauth.NewMetrics(teamauth.MetricsConfig{Enabled: true})
	src := &fakeSource{metrics: m}

	exp, err := NewExporter(provider.Meter("teamauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Inc(teamauth.MetricRefreshSuccess)
			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}()
	}
	wg.Wait()
}
