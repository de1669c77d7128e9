package core

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/pelm"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/predictor"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/regime"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/rhythm"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/telemetry"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/trace"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

func testConfig() Config {
	c := DefaultConfig()
	c.Dim = 4
	c.Predictor = predictor.Config{Dim: 4, Alpha: 0.5, MaxDelta: 5}
	c.Trace = trace.Config{
		Dim: 4, Lambda1: 0.5, Lambda2: 0.8, Lambda3: 0.9,
		Theta1: 1.0, Theta2: 2.0, G12: 0.5, G23: 0.5,
	}
	c.Lattice = pelm.Config{Dim: 4, Capacity: 8}
	c.Rhythm = rhythm.Config{WakeDuration: 100, SleepDuration: 2}
	c.Synergy.Seed = 7
	return c
}

func mustCore(t *testing.T, config Config, sink telemetry.Sink) *Core {
	t.Helper()
	c, err := New(config, sink)
	if err != nil {
		t.Fatalf("construct core: %v", err)
	}
	return c
}

func TestStepFullPipeline(t *testing.T) {
	sink := telemetry.NewCaptureSink()
	c := mustCore(t, testConfig(), sink)

	result, err := c.Step(StepInput{
		Observed:   []float32{2, 0, 0, 0},
		Risk:       0.1,
		Signature:  "sig",
		Candidates: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("step: %v", err)
	}

	if result.StepID == "" {
		t.Fatal("missing step ID")
	}
	if result.DeltaNorm == 0 {
		t.Fatal("expected nonzero delta on a cold predictor")
	}
	if !result.Flags.L1ToL2 {
		t.Fatal("|L1|=2 > θ1=1 should consolidate")
	}
	if !result.Consolidated {
		t.Fatal("wake-phase consolidation should reach the lattice")
	}
	if c.LatticeLen() != 1 {
		t.Fatalf("lattice len = %d, want 1", c.LatticeLen())
	}
	if result.Combo == "" {
		t.Fatal("expected a combo selection")
	}
	if result.Regime.Level != regime.Normal {
		t.Fatalf("low risk should stay NORMAL, got %s", result.Regime.Level)
	}

	if len(sink.ByComponent(ComponentPredictor)) == 0 ||
		len(sink.ByComponent(ComponentRegime)) == 0 ||
		len(sink.ByComponent(ComponentPELM)) == 0 {
		t.Fatal("expected step metrics from each component")
	}
}

func TestStepRejectsInvalidObservedBeforeAnyMutation(t *testing.T) {
	c := mustCore(t, testConfig(), nil)

	_, err := c.Step(StepInput{Observed: []float32{float32(math.NaN()), 0, 0, 0}})
	if !errors.Is(err, vec.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	// Nothing may have advanced, including the regime step counter.
	if got := c.Regime().Step; got != 0 {
		t.Fatalf("regime stepped %d times on a rejected call", got)
	}
	if c.LatticeLen() != 0 {
		t.Fatal("lattice changed on a rejected call")
	}
}

func TestSleepPhaseBlocksConsolidation(t *testing.T) {
	config := testConfig()
	config.Rhythm = rhythm.Config{WakeDuration: 1, SleepDuration: 100}
	c := mustCore(t, config, nil)

	// First step transitions wake→sleep; consolidation requires wake.
	result, err := c.Step(StepInput{Observed: []float32{5, 0, 0, 0}})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result.Phase != rhythm.PhaseSleep {
		t.Fatalf("phase = %s, want sleep after 1-step wake", result.Phase)
	}
	if result.Consolidated || c.LatticeLen() != 0 {
		t.Fatal("sleep phase must block lattice consolidation")
	}
}

func TestRegimeSnapshotPropagatedReadOnly(t *testing.T) {
	config := testConfig()
	config.Regime.CooldownSteps = 0
	c := mustCore(t, config, nil)

	result, err := c.Step(StepInput{Observed: []float32{0.1, 0, 0, 0}, Risk: 0.9})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result.Regime.Level != regime.Caution {
		t.Fatalf("high risk should upgrade, got %s", result.Regime.Level)
	}

	// Mutating the returned snapshot copy must not affect the controller.
	result.Regime.InhibitionGain = 999
	if c.Regime().InhibitionGain == 999 {
		t.Fatal("snapshot is not an isolated copy")
	}
}

func TestInhibitionDampsTraceWrites(t *testing.T) {
	quietConfig := testConfig()
	quiet := mustCore(t, quietConfig, nil)

	threatConfig := testConfig()
	threatConfig.Regime.CooldownSteps = 0
	threat := mustCore(t, threatConfig, nil)

	obs := []float32{2, 0, 0, 0}
	quietResult, err := quiet.Step(StepInput{Observed: obs, Risk: 0})
	if err != nil {
		t.Fatalf("quiet step: %v", err)
	}
	threatResult, err := threat.Step(StepInput{Observed: obs, Risk: 0.95})
	if err != nil {
		t.Fatalf("threat step: %v", err)
	}

	if !quietResult.Flags.L1ToL2 || !threatResult.Flags.L1ToL2 {
		t.Fatal("both cores should consolidate on a strong event")
	}
	// Under CAUTION the event is divided by the inhibition gain (1.5):
	// |L1| = 2/1.5 ≈ 1.33, still above θ1, but the stored trace is smaller.
	ql1, _, _ := quietTraces(t, quiet)
	tl1, _, _ := quietTraces(t, threat)
	if !(tl1[0] < ql1[0]) {
		t.Fatalf("inhibition should damp trace writes: threat %f vs quiet %f", tl1[0], ql1[0])
	}
}

func quietTraces(t *testing.T, c *Core) (l1, l2, l3 []float32) {
	t.Helper()
	return c.traces.Levels()
}

func TestStepDeterministicAcrossFreshInstances(t *testing.T) {
	inputs := []StepInput{
		{Observed: []float32{1, 0, 0, 0}, Risk: 0.2, Signature: "s", Candidates: []string{"a", "b"}},
		{Observed: []float32{0, 2, 0, 0}, Risk: 0.7, Signature: "s", Candidates: []string{"a", "b"}},
		{Observed: []float32{0, 0, 3, 0}, Risk: 0.9, Signature: "s", Candidates: []string{"a", "b"}},
	}

	run := func() []StepResult {
		c := mustCore(t, testConfig(), nil)
		var results []StepResult
		for _, in := range inputs {
			r, err := c.Step(in)
			if err != nil {
				t.Fatalf("step: %v", err)
			}
			results = append(results, r)
		}
		return results
	}

	first := run()
	second := run()
	for i := range first {
		if first[i].DeltaNorm != second[i].DeltaNorm {
			t.Fatalf("step %d: delta norm diverged", i)
		}
		if first[i].Flags != second[i].Flags {
			t.Fatalf("step %d: flags diverged", i)
		}
		if first[i].Regime.Level != second[i].Regime.Level {
			t.Fatalf("step %d: regime diverged", i)
		}
		if first[i].Combo != second[i].Combo {
			t.Fatalf("step %d: combo diverged", i)
		}
		if first[i].Phase != second[i].Phase {
			t.Fatalf("step %d: phase diverged", i)
		}
	}
}

func TestStepConcurrentCallers(t *testing.T) {
	config := testConfig()
	config.Lattice.Capacity = 64
	c := mustCore(t, config, telemetry.NewCaptureSink())

	const goroutines = 8
	const steps = 200
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			obs := []float32{float32(g%3) + 1, 1, 0, 0}
			for i := 0; i < steps; i++ {
				_, err := c.Step(StepInput{
					Observed:   obs,
					Risk:       float32(i%10) / 10,
					Signature:  "s",
					Candidates: []string{"a", "b"},
				})
				if err != nil {
					t.Errorf("goroutine %d step %d: %v", g, i, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if got := c.Regime().Step; got != goroutines*steps {
		t.Fatalf("regime stepped %d times, want %d", got, goroutines*steps)
	}
	if c.LatticeLen() > config.Lattice.Capacity {
		t.Fatalf("lattice len %d exceeds capacity %d", c.LatticeLen(), config.Lattice.Capacity)
	}
	for _, p := range c.pred.Predicted() {
		if p != p || p < 0 || p > 3 {
			t.Fatalf("predictor left its input envelope: %f", p)
		}
	}
}

func TestDisabledCoreIsNeutralBaseline(t *testing.T) {
	config := testConfig()
	config.Enabled = false
	sink := telemetry.NewCaptureSink()
	c := mustCore(t, config, sink)

	for i := 0; i < 10; i++ {
		result, err := c.Step(StepInput{
			Observed:   []float32{5, 5, 5, 5},
			Risk:       1.0,
			Signature:  "sig",
			Candidates: []string{"first", "second"},
		})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}

		if result.DeltaNorm != 0 {
			t.Fatal("baseline delta must be zero")
		}
		if result.Flags.L1ToL2 || result.Flags.L2ToL3 || result.Consolidated {
			t.Fatal("baseline must never consolidate")
		}
		if len(result.Retrieved) != 0 {
			t.Fatal("baseline retrieval must be empty")
		}
		if result.Regime.Level != regime.Normal || result.Regime.InhibitionGain != 1 || result.Regime.TauScale != 1 {
			t.Fatal("baseline regime must stay NORMAL with neutral gains")
		}
		if result.Combo != "first" {
			t.Fatalf("baseline combo must be the first candidate, got %q", result.Combo)
		}
		if result.Phase != rhythm.PhaseWake {
			t.Fatal("baseline rhythm must stay wake")
		}
	}
}

func TestPerComponentOverride(t *testing.T) {
	config := testConfig()
	config.Overrides.Synergy = true
	c := mustCore(t, config, nil)

	result, err := c.Step(StepInput{
		Observed:   []float32{1, 0, 0, 0},
		Signature:  "sig",
		Candidates: []string{"x", "y"},
	})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result.Combo != "x" {
		t.Fatalf("overridden synergy must act as baseline, got %q", result.Combo)
	}
	// The rest of the pipeline stays adaptive.
	if result.DeltaNorm == 0 {
		t.Fatal("adaptive predictor should still produce delta")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dim", func(c *Config) { c.Dim = 0 }},
		{"dim mismatch", func(c *Config) { c.Lattice.Dim = 9 }},
		{"epsilon above one", func(c *Config) { c.Epsilon = 1.5 }},
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"negative retrieval weight", func(c *Config) { c.RetrievalWeight = -1 }},
	}
	for _, tc := range cases {
		config := testConfig()
		tc.mutate(&config)
		if _, err := New(config, nil); !errors.Is(err, vec.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestRetrievalFeedsComboOutcome(t *testing.T) {
	config := testConfig()
	config.Epsilon = 0
	config.SimilarityThreshold = 0.5
	c := mustCore(t, config, nil)

	obs := []float32{2, 0, 0, 0}
	for i := 0; i < 5; i++ {
		if _, err := c.Step(StepInput{Observed: obs, Signature: "sig", Candidates: []string{"only"}}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	stats, ok := c.Selector().Stats("sig", "only")
	if !ok {
		t.Fatal("expected combo statistics after repeated steps")
	}
	if stats.Attempts != 5 {
		t.Fatalf("attempts = %d, want 5", stats.Attempts)
	}
}
