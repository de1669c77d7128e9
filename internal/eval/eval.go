// Package eval runs lightweight post-run validation over a sequence of
// pipeline step results, checking the bounds the components promise.
package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
)

// #region harness

// Harness validates step results against the bounds implied by the
// config they were produced with.
type Harness struct {
	config core.Config
}

// NewHarness creates a harness for the given pipeline config.
func NewHarness(config core.Config) *Harness {
	return &Harness{config: config}
}

// Run checks every step result plus the final lattice occupancy.
// Returns pass/fail with metrics, no side effects.
func (h *Harness) Run(results []core.StepResult, latticeLen int) Result {
	var metrics []Metric
	passed := true
	var failReasons []string

	fail := func(format string, args ...any) {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf(format, args...))
	}

	// 1. Delta clamp: per-dimension clamp bounds the norm by
	// MaxDelta * sqrt(dim).
	maxDelta := float64(h.config.Predictor.MaxDelta) * math.Sqrt(float64(h.config.Dim))
	var worstDelta float64
	for _, r := range results {
		if float64(r.DeltaNorm) > worstDelta {
			worstDelta = float64(r.DeltaNorm)
		}
	}
	deltaPass := worstDelta <= maxDelta*(1+1e-6)
	metrics = append(metrics, Metric{Name: "max_delta_norm", Value: worstDelta, Pass: deltaPass})
	if !deltaPass {
		fail("delta norm %.4f exceeds clamp bound %.4f", worstDelta, maxDelta)
	}

	// 2. Trace memory footprint never grows.
	usagePass := true
	var usage float64
	for i, r := range results {
		if i == 0 {
			usage = float64(r.UsageBytes)
			continue
		}
		if float64(r.UsageBytes) != usage {
			usagePass = false
		}
	}
	metrics = append(metrics, Metric{Name: "usage_bytes", Value: usage, Pass: usagePass})
	if !usagePass {
		fail("trace usage changed across steps")
	}

	// 3. Regime actuation stays inside its clamp window and the level
	// moves at most one step at a time; flip counts never decrease.
	gainPass, levelPass, flipPass := true, true, true
	var prevLevel int
	var prevFlips uint64
	for i, r := range results {
		gain := float64(r.Regime.InhibitionGain)
		tau := float64(r.Regime.TauScale)
		if h.config.Enabled {
			if gain < float64(h.config.Regime.MinGain) || gain > float64(h.config.Regime.MaxGain) {
				gainPass = false
			}
			if tau < float64(h.config.Regime.MinTau) || tau > float64(h.config.Regime.MaxTau) {
				gainPass = false
			}
		}
		level := int(r.Regime.Level)
		if i > 0 {
			diff := level - prevLevel
			if diff < -1 || diff > 1 {
				levelPass = false
			}
			if r.Regime.FlipCount < prevFlips {
				flipPass = false
			}
		}
		prevLevel = level
		prevFlips = r.Regime.FlipCount
	}
	metrics = append(metrics, Metric{Name: "actuation_bounds", Value: boolVal(gainPass), Pass: gainPass})
	if !gainPass {
		fail("regime actuation left its clamp window")
	}
	metrics = append(metrics, Metric{Name: "level_step", Value: boolVal(levelPass), Pass: levelPass})
	if !levelPass {
		fail("regime level jumped more than one step")
	}
	metrics = append(metrics, Metric{Name: "flip_monotone", Value: boolVal(flipPass), Pass: flipPass})
	if !flipPass {
		fail("flip count decreased")
	}

	// 4. Lattice occupancy respects capacity.
	capPass := latticeLen <= h.config.Lattice.Capacity
	metrics = append(metrics, Metric{Name: "lattice_len", Value: float64(latticeLen), Pass: capPass})
	if !capPass {
		fail("lattice holds %d entries, capacity %d", latticeLen, h.config.Lattice.Capacity)
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}
	return Result{Passed: passed, Metrics: metrics, Reason: reason}
}

// #endregion harness

// #region helpers

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
