package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the data point carrying key=value.
func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: unexpected data type %T", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCandidate(ctx, "A")
	m.RecordCandidate(ctx, "A")
	m.RecordCandidate(ctx, "B")
	m.RecordCommit(ctx, "A")
	m.RecordTickFailure(ctx, "classify")
	m.RecordPublishError(ctx, "nats")

	rm := collect(t, reader)

	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"fingerspell.stabilizer.candidates", "label", "A", 2},
		{"fingerspell.stabilizer.candidates", "label", "B", 1},
		{"fingerspell.gate.commits", "label", "A", 1},
		{"fingerspell.sampler.failures", "stage", "classify", 1},
		{"fingerspell.publish.errors", "publisher", "nats", 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric+"/"+tt.value, func(t *testing.T) {
			found := findMetric(rm, tt.metric)
			if found == nil {
				t.Fatalf("metric %q not found", tt.metric)
			}
			if got := sumFor(t, found, tt.key, tt.value); got != tt.want {
				t.Errorf("%s{%s=%s} = %d, want %d", tt.metric, tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestClassifyDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ClassifyDuration.Record(ctx, 0.04)
	m.ClassifyDuration.Record(ctx, 0.12)

	found := findMetric(collect(t, reader), "fingerspell.classifier.duration")
	if found == nil {
		t.Fatal("histogram not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("expected one data point with 2 observations, got %+v", hist.DataPoints)
	}
	if found.Unit != "s" {
		t.Errorf("unit = %q, want s", found.Unit)
	}
}

func TestFrameRateGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FrameRate.Record(ctx, 4.5)
	m.FrameRate.Record(ctx, 5.0)

	found := findMetric(collect(t, reader), "fingerspell.sampler.fps")
	if found == nil {
		t.Fatal("gauge not found")
	}
	gauge, ok := found.Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 5.0 {
		t.Errorf("expected last value 5.0, got %+v", gauge.DataPoints)
	}
}

func TestActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	found := findMetric(collect(t, reader), "fingerspell.active_sessions")
	if found == nil {
		t.Fatal("up-down counter not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active sessions = %+v, want 1", sum.DataPoints)
	}
}
