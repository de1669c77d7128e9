package provenance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/telemetry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndSummarizeMetrics(t *testing.T) {
	s := openTestStore(t)

	for i, v := range []float64{1, 2, 3} {
		err := s.InsertMetric(telemetry.StepMetric{
			StepID:    "step-1",
			Component: "trace",
			Name:      "l1_norm",
			Value:     v,
			Regime:    "NORMAL",
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	summaries, err := s.Summaries()
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary row, got %d", len(summaries))
	}
	sum := summaries[0]
	if sum.Component != "trace" || sum.Name != "l1_norm" {
		t.Fatalf("unexpected series %s/%s", sum.Component, sum.Name)
	}
	if sum.Count != 3 || sum.Mean != 2 || sum.Max != 3 {
		t.Fatalf("summary = %+v, want count 3 mean 2 max 3", sum)
	}
}

func TestMetricValuesOrdered(t *testing.T) {
	s := openTestStore(t)
	for _, v := range []float64{0.5, 0.7, 0.2} {
		if err := s.InsertMetric(telemetry.StepMetric{StepID: "s", Component: "regime", Name: "risk", Value: v}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	values, err := s.MetricValues("regime", "risk")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	want := []float64{0.5, 0.7, 0.2}
	if len(values) != len(want) {
		t.Fatalf("got %d values, want %d", len(values), len(want))
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("values[%d] = %f, want %f", i, values[i], want[i])
		}
	}
}

func TestInsertAndListTransitions(t *testing.T) {
	s := openTestStore(t)

	if err := s.InsertTransition("step-3", "NORMAL", "CAUTION", 0.7); err != nil {
		t.Fatalf("insert transition: %v", err)
	}
	if err := s.InsertTransition("step-9", "CAUTION", "DEFENSIVE", 0.9); err != nil {
		t.Fatalf("insert transition: %v", err)
	}

	transitions, err := s.ListTransitions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(transitions))
	}
	// Most recent first.
	if transitions[0].ToLevel != "DEFENSIVE" || transitions[1].ToLevel != "CAUTION" {
		t.Fatalf("unexpected order: %+v", transitions)
	}
}

func TestAsyncSinkWritesThrough(t *testing.T) {
	s := openTestStore(t)
	sink := NewAsyncSink(s, 16)

	for i := 0; i < 10; i++ {
		sink.Record(telemetry.StepMetric{
			StepID:    "step",
			Component: "pelm",
			Name:      "evictions",
			Value:     float64(i),
			CreatedAt: time.Now().UTC(),
		})
	}
	sink.Close()

	values, err := s.MetricValues("pelm", "evictions")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(values)+int(sink.Dropped()) != 10 {
		t.Fatalf("wrote %d, dropped %d, want total 10", len(values), sink.Dropped())
	}
	if len(values) == 0 {
		t.Fatal("expected at least one metric written")
	}
}

func TestAsyncSinkRecordAfterCloseDrops(t *testing.T) {
	s := openTestStore(t)
	sink := NewAsyncSink(s, 4)
	sink.Close()

	// A late Record must be counted as a drop, never panic or block.
	sink.Record(telemetry.StepMetric{Component: "trace", Name: "l1_norm", Value: 1})
	sink.Record(telemetry.StepMetric{Component: "trace", Name: "l1_norm", Value: 2})

	if got := sink.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
	values, err := s.MetricValues("trace", "l1_norm")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("wrote %d metrics after close", len(values))
	}
}

func TestAsyncSinkCloseIdempotent(t *testing.T) {
	s := openTestStore(t)
	sink := NewAsyncSink(s, 4)
	sink.Close()
	sink.Close()
}
