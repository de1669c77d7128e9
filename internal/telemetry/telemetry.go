// Package telemetry defines the outbound observability contract of the
// memory core: structured step metrics pushed into a write-only sink.
// Sinks are fire-and-forget; they must never block or fail the calling
// operation, and delivery failures stay inside the sink.
package telemetry

import (
	"sync"
	"time"
)

// #region step-metric

// StepMetric is one structured observation from one component at one step.
type StepMetric struct {
	StepID    string
	Component string
	Name      string
	Value     float64
	Regime    string
	CreatedAt time.Time
}

// #endregion step-metric

// #region sink

// Sink accepts step metrics. Implementations swallow their own errors.
type Sink interface {
	Record(m StepMetric)
}

// #endregion sink

// #region nop-sink

// NopSink discards everything.
type NopSink struct{}

// Record discards the metric.
func (NopSink) Record(m StepMetric) {}

// #endregion nop-sink

// #region capture-sink

// CaptureSink buffers metrics in memory. Used by tests and the inspect
// tooling; not intended for long-running deployments.
type CaptureSink struct {
	mu      sync.Mutex
	metrics []StepMetric
}

// NewCaptureSink returns an empty capture sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Record appends the metric.
func (s *CaptureSink) Record(m StepMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

// Metrics returns a copy of everything recorded so far.
func (s *CaptureSink) Metrics() []StepMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepMetric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// ByComponent returns recorded metrics for one component.
func (s *CaptureSink) ByComponent(component string) []StepMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StepMetric
	for _, m := range s.metrics {
		if m.Component == component {
			out = append(out, m)
		}
	}
	return out
}

// #endregion capture-sink
