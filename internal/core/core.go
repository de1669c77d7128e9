// Package core composes the six adaptive components into one step
// pipeline: event → Δ → synaptic traces → (wake-gated) lattice
// consolidation → associative retrieval → combo statistics, with the
// regime controller modulating gains across all of them.
//
// Locking discipline: each component owns exactly one mutable-state
// region behind its own lock, and no component acquires another's lock.
// The regime's gains travel as an immutable snapshot taken at the start
// of each step, so consumers never read the controller live.
package core

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/pelm"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/predictor"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/regime"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/rhythm"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/synergy"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/telemetry"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/trace"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region component-names

// Component names used in emitted step metrics.
const (
	ComponentPredictor = "predictor"
	ComponentTrace     = "trace"
	ComponentPELM      = "pelm"
	ComponentRhythm    = "rhythm"
	ComponentRegime    = "regime"
	ComponentSynergy   = "synergy"
)

// #endregion component-names

// #region config

// Overrides disables individual components even when the core is
// enabled; a disabled component runs its pass-through baseline.
type Overrides struct {
	Predictor bool
	Trace     bool
	Lattice   bool
	Rhythm    bool
	Regime    bool
	Synergy   bool
}

// Config bundles the six component configs plus pipeline knobs. Variant
// selection happens here, at construction: with Enabled false every
// component is the pass-through baseline and a Step degenerates to the
// pre-adaptation behavior. There is no process-wide mutable switch.
type Config struct {
	Dim int

	Predictor predictor.Config
	Trace     trace.Config
	Lattice   pelm.Config
	Rhythm    rhythm.Config
	Regime    regime.Config
	Synergy   synergy.Config

	// Epsilon is the base exploration rate; the regime's inhibition gain
	// divides it, suppressing exploration under threat.
	Epsilon float32

	// TopK and SimilarityThreshold parameterize the per-step retrieval.
	TopK                int
	SimilarityThreshold float32

	// RetrievalWeight scales the best retrieval score into the outcome
	// signal recorded against the selected combo.
	RetrievalWeight float32

	Enabled   bool
	Overrides Overrides
}

// DefaultConfig returns a fully adaptive 128-dim pipeline.
func DefaultConfig() Config {
	return Config{
		Dim:                 128,
		Predictor:           predictor.DefaultConfig(),
		Trace:               trace.DefaultConfig(),
		Lattice:             pelm.DefaultConfig(),
		Rhythm:              rhythm.DefaultConfig(),
		Regime:              regime.DefaultConfig(),
		Synergy:             synergy.DefaultConfig(),
		Epsilon:             0.1,
		TopK:                3,
		SimilarityThreshold: 0.6,
		RetrievalWeight:     0.5,
		Enabled:             true,
	}
}

// Validate checks the pipeline knobs and dimensional consistency.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("%w: core dim %d, want > 0", vec.ErrInvalidInput, c.Dim)
	}
	if c.Enabled {
		if !c.Overrides.Predictor && c.Predictor.Dim != c.Dim {
			return fmt.Errorf("%w: predictor dim %d must equal core dim %d", vec.ErrInvalidInput, c.Predictor.Dim, c.Dim)
		}
		if !c.Overrides.Trace && c.Trace.Dim != c.Dim {
			return fmt.Errorf("%w: trace dim %d must equal core dim %d", vec.ErrInvalidInput, c.Trace.Dim, c.Dim)
		}
		if !c.Overrides.Lattice && c.Lattice.Dim != c.Dim {
			return fmt.Errorf("%w: lattice dim %d must equal core dim %d", vec.ErrInvalidInput, c.Lattice.Dim, c.Dim)
		}
	}
	if c.Epsilon < 0 || c.Epsilon > 1 || !vec.FiniteScalar(c.Epsilon) {
		return fmt.Errorf("%w: epsilon %f, want [0, 1]", vec.ErrInvalidInput, c.Epsilon)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k %d, want > 0", vec.ErrInvalidInput, c.TopK)
	}
	if !vec.FiniteScalar(c.SimilarityThreshold) {
		return fmt.Errorf("%w: similarity threshold is not finite", vec.ErrInvalidInput)
	}
	if c.RetrievalWeight < 0 || !vec.FiniteScalar(c.RetrievalWeight) {
		return fmt.Errorf("%w: retrieval weight %f, want >= 0", vec.ErrInvalidInput, c.RetrievalWeight)
	}
	return nil
}

// #endregion config

// #region step-types

// StepInput is one external event plus its selection context.
type StepInput struct {
	Observed   []float32
	Risk       float32
	Signature  string   // state signature for combo statistics
	Candidates []string // candidate combo IDs; empty skips selection
}

// StepResult is everything one pipeline step produced.
type StepResult struct {
	StepID       string
	Delta        []float32
	DeltaNorm    float32
	Flags        trace.Flags
	Consolidated bool
	Evicted      bool
	Retrieved    []pelm.Result
	Combo        string
	Regime       regime.Snapshot
	Phase        rhythm.Phase
	UsageBytes   int
}

// #endregion step-types

// #region core

// Core owns no mutable state of its own beyond its components; Step may
// be called concurrently from many request threads.
type Core struct {
	config   Config
	pred     predictor.Adapter
	traces   trace.Memory
	lattice  pelm.Store
	rhythm   *rhythm.Rhythm
	regime   regime.Controller
	selector synergy.Selector
	sink     telemetry.Sink
}

// New validates config and wires the adaptive or pass-through variant of
// each component. A nil sink means metrics are discarded.
func New(config Config, sink telemetry.Sink) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}

	c := &Core{config: config, sink: sink}

	var err error
	if config.Enabled && !config.Overrides.Predictor {
		c.pred, err = predictor.NewEMAAdapter(config.Predictor)
	} else {
		c.pred, err = predictor.NewPassthrough(config.Dim)
	}
	if err != nil {
		return nil, err
	}

	if config.Enabled && !config.Overrides.Trace {
		c.traces, err = trace.NewSynapticMemory(config.Trace)
	} else {
		c.traces, err = trace.NewPassthrough(config.Dim)
	}
	if err != nil {
		return nil, err
	}

	if config.Enabled && !config.Overrides.Lattice {
		c.lattice, err = pelm.NewLattice(config.Lattice)
	} else {
		c.lattice, err = pelm.NewPassthrough(config.Dim)
	}
	if err != nil {
		return nil, err
	}

	if config.Enabled && !config.Overrides.Rhythm {
		c.rhythm = rhythm.New(config.Rhythm)
	} else {
		// A zero-duration rhythm freezes in wake: the baseline never
		// cycles and never blocks consolidation by sleeping.
		c.rhythm = rhythm.New(rhythm.Config{})
	}

	if config.Enabled && !config.Overrides.Regime {
		c.regime, err = regime.NewHysteresisController(config.Regime)
		if err != nil {
			return nil, err
		}
	} else {
		c.regime = regime.NewPassthrough()
	}

	if config.Enabled && !config.Overrides.Synergy {
		c.selector, err = synergy.NewExperienceMemory(config.Synergy)
		if err != nil {
			return nil, err
		}
	} else {
		c.selector = synergy.NewPassthrough()
	}

	return c, nil
}

// #endregion core

// #region step

// Step runs one event through the full pipeline. Input is validated
// before any component mutates, so a rejected call leaves the whole core
// untouched.
func (c *Core) Step(in StepInput) (StepResult, error) {
	if err := vec.Check("observed", in.Observed, c.config.Dim); err != nil {
		return StepResult{}, err
	}

	stepID := uuid.New().String()
	result := StepResult{StepID: stepID}

	// 1. Regime snapshot, copied once and propagated read-only.
	snap := c.regime.Step(in.Risk)
	result.Regime = snap

	// 2. Prediction error against the internal EMA predictor; the adapter
	// reads and advances it in one critical section.
	delta, err := c.pred.ComputeDelta(in.Observed)
	if err != nil {
		return StepResult{}, err
	}
	result.Delta = delta
	result.DeltaNorm = vec.Norm(delta)

	// 3. Synaptic traces, with inhibition damping the write magnitude.
	event := in.Observed
	if snap.InhibitionGain > 1 {
		event = make([]float32, len(in.Observed))
		for i, x := range in.Observed {
			event[i] = x / snap.InhibitionGain
		}
	}
	flags, err := c.traces.Update(event)
	if err != nil {
		return StepResult{}, err
	}
	result.Flags = flags
	result.UsageBytes = c.traces.Usage()

	// 4. Rhythm, with threat shortening the effective cycle.
	phase, _ := c.rhythm.Step(snap.TauScale)
	result.Phase = phase

	// 5. Consolidation into the lattice only while awake.
	if phase == rhythm.PhaseWake && flags.L1ToL2 {
		l1, _, _ := c.traces.Levels()
		evicted, err := c.lattice.Insert(in.Observed, l1, c.rhythm.CyclePosition())
		if err != nil {
			return StepResult{}, err
		}
		result.Consolidated = true
		result.Evicted = evicted != nil
	}

	// 6. Associative retrieval.
	retrieved, err := c.lattice.Query(in.Observed, c.config.TopK, c.config.SimilarityThreshold)
	if err != nil {
		return StepResult{}, err
	}
	result.Retrieved = retrieved

	// 7. Combo selection and outcome recording, exploration suppressed
	// proportionally to the inhibition gain.
	if len(in.Candidates) > 0 {
		epsilon := c.config.Epsilon
		if snap.InhibitionGain > 0 {
			epsilon /= snap.InhibitionGain
		}
		combo, err := c.selector.SelectCombo(in.Signature, in.Candidates, epsilon)
		if err != nil {
			return StepResult{}, err
		}
		result.Combo = combo

		outcome := meanOf(delta)
		if len(retrieved) > 0 {
			outcome += c.config.RetrievalWeight * retrieved[0].Score
		}
		if err := c.selector.RecordOutcome(in.Signature, combo, outcome); err != nil {
			return StepResult{}, err
		}
	}

	c.emit(result, in)
	return result, nil
}

// #endregion step

// #region accessors

// Regime returns the latest published snapshot.
func (c *Core) Regime() regime.Snapshot {
	return c.regime.Current()
}

// LatticeLen reports the current lattice entry count.
func (c *Core) LatticeLen() int {
	return c.lattice.Len()
}

// Selector exposes the combo statistics for inspection.
func (c *Core) Selector() synergy.Selector {
	return c.selector
}

// #endregion accessors

// #region metrics

// emit pushes one structured metric set per component for this step.
// The sink is fire-and-forget; nothing here can fail the step.
func (c *Core) emit(r StepResult, in StepInput) {
	regimeName := r.Regime.Level.String()
	record := func(component, name string, value float64) {
		c.sink.Record(telemetry.StepMetric{
			StepID:    r.StepID,
			Component: component,
			Name:      name,
			Value:     value,
			Regime:    regimeName,
		})
	}

	record(ComponentPredictor, "delta_norm", float64(r.DeltaNorm))
	record(ComponentTrace, "usage_bytes", float64(r.UsageBytes))
	record(ComponentTrace, "consolidation_l1_l2", boolMetric(r.Flags.L1ToL2))
	record(ComponentTrace, "consolidation_l2_l3", boolMetric(r.Flags.L2ToL3))
	record(ComponentPELM, "size", float64(c.lattice.Len()))
	record(ComponentPELM, "evicted", boolMetric(r.Evicted))
	record(ComponentPELM, "retrieved", float64(len(r.Retrieved)))
	record(ComponentRhythm, "wake", boolMetric(r.Phase == rhythm.PhaseWake))
	record(ComponentRegime, "level", float64(r.Regime.Level))
	record(ComponentRegime, "flip_count", float64(r.Regime.FlipCount))
	record(ComponentRegime, "risk", float64(in.Risk))
	if r.Combo != "" {
		record(ComponentSynergy, "selected", 1)
	}
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// meanOf computes the arithmetic mean of v.
func meanOf(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += float64(x)
	}
	return float32(sum / float64(len(v)))
}

// #endregion metrics
