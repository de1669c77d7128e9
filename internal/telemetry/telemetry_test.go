package telemetry

import (
	"sync"
	"testing"
)

func TestCaptureSinkRecordsInOrder(t *testing.T) {
	s := NewCaptureSink()
	s.Record(StepMetric{Component: "trace", Name: "l1_norm", Value: 1})
	s.Record(StepMetric{Component: "regime", Name: "risk", Value: 0.5})
	s.Record(StepMetric{Component: "trace", Name: "l2_norm", Value: 2})

	metrics := s.Metrics()
	if len(metrics) != 3 {
		t.Fatalf("got %d metrics, want 3", len(metrics))
	}
	if metrics[0].Name != "l1_norm" || metrics[2].Name != "l2_norm" {
		t.Fatalf("order not preserved: %+v", metrics)
	}
}

func TestMetricsReturnsIsolatedCopy(t *testing.T) {
	s := NewCaptureSink()
	s.Record(StepMetric{Component: "pelm", Name: "len", Value: 4})

	first := s.Metrics()
	first[0].Value = 99

	if got := s.Metrics()[0].Value; got != 4 {
		t.Fatalf("mutating the returned slice leaked into the sink: %f", got)
	}
}

func TestByComponentFilters(t *testing.T) {
	s := NewCaptureSink()
	s.Record(StepMetric{Component: "trace", Name: "l1_norm", Value: 1})
	s.Record(StepMetric{Component: "regime", Name: "risk", Value: 0.5})
	s.Record(StepMetric{Component: "trace", Name: "l2_norm", Value: 2})

	traces := s.ByComponent("trace")
	if len(traces) != 2 {
		t.Fatalf("got %d trace metrics, want 2", len(traces))
	}
	for _, m := range traces {
		if m.Component != "trace" {
			t.Fatalf("foreign component in filter result: %s", m.Component)
		}
	}
	if got := s.ByComponent("absent"); len(got) != 0 {
		t.Fatalf("expected empty result for unknown component, got %d", len(got))
	}
}

func TestCaptureSinkConcurrentRecord(t *testing.T) {
	s := NewCaptureSink()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Record(StepMetric{Component: "core", Name: "step", Value: float64(i)})
			}
		}()
	}
	wg.Wait()

	if got := len(s.Metrics()); got != 800 {
		t.Fatalf("got %d metrics, want 800", got)
	}
}

func TestNopSinkDiscards(t *testing.T) {
	var s Sink = NopSink{}
	s.Record(StepMetric{Component: "core", Name: "step", Value: 1})
}
