package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *metric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m.LoadDuration == nil || m.StoryLoads == nil || m.ActiveSessions == nil {
		t.Fatal("expected all instruments to be initialised")
	}
}

func TestRecordLoad_CountsByStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLoad(ctx, 0.01, true)
	m.RecordLoad(ctx, 0.02, true)
	m.RecordLoad(ctx, 0.5, false)

	rm := collect(t, reader)
	loads := findMetric(rm, "fabula.store.loads")
	if loads == nil {
		t.Fatal("fabula.store.loads not found")
	}
	sum, ok := loads.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", loads.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total loads = %d, want 3", total)
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("expected 2 status series (ok, error), got %d", len(sum.DataPoints))
	}
}

func TestRecordTransition_CountsEndings(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTransition(ctx, "", false)
	m.RecordTransition(ctx, "success", true)

	rm := collect(t, reader)

	trans := findMetric(rm, "fabula.nav.scene_transitions")
	if trans == nil {
		t.Fatal("fabula.nav.scene_transitions not found")
	}
	sum := trans.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("transitions = %d, want 2", total)
	}

	endings := findMetric(rm, "fabula.nav.endings_reached")
	if endings == nil {
		t.Fatal("fabula.nav.endings_reached not found")
	}
	esum := endings.Data.(metricdata.Sum[int64])
	var etotal int64
	for _, dp := range esum.DataPoints {
		etotal += dp.Value
	}
	if etotal != 1 {
		t.Errorf("endings = %d, want 1", etotal)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	// Must not panic.
	m.RecordLoad(ctx, 0.1, true)
	m.RecordCacheHit(ctx)
	m.RecordValidationFailure(ctx, "start-scene")
	m.RecordSessionStarted(ctx, "demo")
	m.RecordTransition(ctx, "success", true)
	m.AddActiveSessions(ctx, 1)
}
