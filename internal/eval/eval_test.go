package eval

import (
	"testing"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/regime"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/trace"
)

func harnessConfig() core.Config {
	c := core.DefaultConfig()
	c.Dim = 4
	c.Predictor.Dim = 4
	c.Predictor.MaxDelta = 5
	c.Trace.Dim = 4
	c.Lattice.Dim = 4
	c.Lattice.Capacity = 8
	return c
}

func cleanResult(level regime.Level, flips uint64) core.StepResult {
	return core.StepResult{
		DeltaNorm:  1.5,
		UsageBytes: 48,
		Regime: regime.Snapshot{
			Level:          level,
			InhibitionGain: 1.5,
			TauScale:       0.7,
			FlipCount:      flips,
		},
	}
}

func TestCleanRunPasses(t *testing.T) {
	h := NewHarness(harnessConfig())
	results := []core.StepResult{
		cleanResult(regime.Normal, 0),
		cleanResult(regime.Caution, 1),
		cleanResult(regime.Caution, 1),
	}
	out := h.Run(results, 3)
	if !out.Passed {
		t.Fatalf("clean run failed: %s", out.Reason)
	}
	for _, m := range out.Metrics {
		if !m.Pass {
			t.Fatalf("metric %s failed on a clean run", m.Name)
		}
	}
}

func TestDeltaBoundViolation(t *testing.T) {
	h := NewHarness(harnessConfig())
	bad := cleanResult(regime.Normal, 0)
	// Clamp bound is MaxDelta * sqrt(dim) = 10.
	bad.DeltaNorm = 11
	out := h.Run([]core.StepResult{bad}, 0)
	if out.Passed {
		t.Fatal("expected delta bound failure")
	}
	if !metricFailed(out, "max_delta_norm") {
		t.Fatalf("wrong failing metric: %s", out.Reason)
	}
}

func TestLevelJumpViolation(t *testing.T) {
	h := NewHarness(harnessConfig())
	results := []core.StepResult{
		cleanResult(regime.Normal, 0),
		cleanResult(regime.Defensive, 1),
	}
	out := h.Run(results, 0)
	if out.Passed {
		t.Fatal("expected level jump failure")
	}
	if !metricFailed(out, "level_step") {
		t.Fatalf("wrong failing metric: %s", out.Reason)
	}
}

func TestActuationOutsideWindow(t *testing.T) {
	h := NewHarness(harnessConfig())
	bad := cleanResult(regime.Normal, 0)
	bad.Regime.InhibitionGain = 9
	out := h.Run([]core.StepResult{bad}, 0)
	if out.Passed {
		t.Fatal("expected actuation bound failure")
	}
}

func TestCapacityViolation(t *testing.T) {
	h := NewHarness(harnessConfig())
	out := h.Run([]core.StepResult{cleanResult(regime.Normal, 0)}, 9)
	if out.Passed {
		t.Fatal("expected capacity failure")
	}
	if !metricFailed(out, "lattice_len") {
		t.Fatalf("wrong failing metric: %s", out.Reason)
	}
}

func TestRealPipelineSatisfiesHarness(t *testing.T) {
	config := harnessConfig()
	config.Trace = trace.Config{
		Dim: 4, Lambda1: 0.5, Lambda2: 0.8, Lambda3: 0.9,
		Theta1: 1.0, Theta2: 2.0, G12: 0.5, G23: 0.5,
	}
	config.Synergy.Seed = 3
	c, err := core.New(config, nil)
	if err != nil {
		t.Fatalf("construct core: %v", err)
	}

	var results []core.StepResult
	for i := 0; i < 32; i++ {
		r, err := c.Step(core.StepInput{
			Observed:   []float32{float32(i % 3), 1, 0, 0},
			Risk:       float32(i%10) / 10,
			Signature:  "s",
			Candidates: []string{"a", "b"},
		})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		results = append(results, r)
	}

	out := NewHarness(config).Run(results, c.LatticeLen())
	if !out.Passed {
		t.Fatalf("real pipeline violated invariants: %s", out.Reason)
	}
}

func metricFailed(r Result, name string) bool {
	for _, m := range r.Metrics {
		if m.Name == name && !m.Pass {
			return true
		}
	}
	return false
}
