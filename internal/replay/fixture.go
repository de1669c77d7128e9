package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/pelm"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/predictor"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/regime"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/rhythm"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/synergy"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/trace"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string          `json:"description"`
	Config      FixtureConfig   `json:"config"`
	Events      []FixtureEvent  `json:"events"`
	Expected    []FixtureExpect `json:"expected,omitempty"`
}

// FixtureEvent mirrors Event with JSON tags.
type FixtureEvent struct {
	Observed   []float32 `json:"observed"`
	Risk       float32   `json:"risk"`
	Signature  string    `json:"signature,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
}

// FixtureExpect captures the expected outcome per step.
type FixtureExpect struct {
	Regime       string `json:"regime"`
	Consolidated bool   `json:"consolidated"`
	Combo        string `json:"combo,omitempty"`
}

// FixtureConfig mirrors core.Config with JSON tags.
type FixtureConfig struct {
	Dim                 int     `json:"dim"`
	Enabled             bool    `json:"enabled"`
	Epsilon             float32 `json:"epsilon"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
	RetrievalWeight     float32 `json:"retrieval_weight"`

	Predictor FixturePredictorConfig `json:"predictor"`
	Trace     FixtureTraceConfig     `json:"trace"`
	Lattice   FixtureLatticeConfig   `json:"lattice"`
	Rhythm    FixtureRhythmConfig    `json:"rhythm"`
	Regime    FixtureRegimeConfig    `json:"regime"`
	Synergy   FixtureSynergyConfig   `json:"synergy"`
}

// FixturePredictorConfig mirrors predictor.Config.
type FixturePredictorConfig struct {
	Alpha    float32 `json:"alpha"`
	MaxDelta float32 `json:"max_delta"`
}

// FixtureTraceConfig mirrors trace.Config.
type FixtureTraceConfig struct {
	Lambda1 float32 `json:"lambda1"`
	Lambda2 float32 `json:"lambda2"`
	Lambda3 float32 `json:"lambda3"`
	Theta1  float32 `json:"theta1"`
	Theta2  float32 `json:"theta2"`
	G12     float32 `json:"g12"`
	G23     float32 `json:"g23"`
}

// FixtureLatticeConfig mirrors pelm.Config.
type FixtureLatticeConfig struct {
	Capacity int `json:"capacity"`
}

// FixtureRhythmConfig mirrors rhythm.Config.
type FixtureRhythmConfig struct {
	WakeDuration  int `json:"wake_duration"`
	SleepDuration int `json:"sleep_duration"`
}

// FixtureRegimeConfig mirrors regime.Config.
type FixtureRegimeConfig struct {
	UpgradeCaution     float32    `json:"upgrade_caution"`
	UpgradeDefensive   float32    `json:"upgrade_defensive"`
	DowngradeCaution   float32    `json:"downgrade_caution"`
	DowngradeDefensive float32    `json:"downgrade_defensive"`
	DwellSteps         int        `json:"dwell_steps"`
	CooldownSteps      int        `json:"cooldown_steps"`
	InhibitionGains    [3]float32 `json:"inhibition_gains"`
	TauScales          [3]float32 `json:"tau_scales"`
	MinGain            float32    `json:"min_gain"`
	MaxGain            float32    `json:"max_gain"`
	MinTau             float32    `json:"min_tau"`
	MaxTau             float32    `json:"max_tau"`
}

// FixtureSynergyConfig mirrors synergy.Config.
type FixtureSynergyConfig struct {
	Alpha     float32 `json:"alpha"`
	MinTrials uint64  `json:"min_trials"`
	DeltaMin  float32 `json:"delta_min"`
	DeltaMax  float32 `json:"delta_max"`
	Seed      int64   `json:"seed"`
	Shards    int     `json:"shards"`
}

// #endregion fixture-types

// #region conversion

// CoreConfig expands the fixture config into a core.Config.
func (f FixtureConfig) CoreConfig() core.Config {
	return core.Config{
		Dim:                 f.Dim,
		Enabled:             f.Enabled,
		Epsilon:             f.Epsilon,
		TopK:                f.TopK,
		SimilarityThreshold: f.SimilarityThreshold,
		RetrievalWeight:     f.RetrievalWeight,
		Predictor: predictor.Config{
			Dim:      f.Dim,
			Alpha:    f.Predictor.Alpha,
			MaxDelta: f.Predictor.MaxDelta,
		},
		Trace: trace.Config{
			Dim:     f.Dim,
			Lambda1: f.Trace.Lambda1,
			Lambda2: f.Trace.Lambda2,
			Lambda3: f.Trace.Lambda3,
			Theta1:  f.Trace.Theta1,
			Theta2:  f.Trace.Theta2,
			G12:     f.Trace.G12,
			G23:     f.Trace.G23,
		},
		Lattice: pelm.Config{Dim: f.Dim, Capacity: f.Lattice.Capacity},
		Rhythm: rhythm.Config{
			WakeDuration:  f.Rhythm.WakeDuration,
			SleepDuration: f.Rhythm.SleepDuration,
		},
		Regime: regime.Config{
			UpgradeCaution:     f.Regime.UpgradeCaution,
			UpgradeDefensive:   f.Regime.UpgradeDefensive,
			DowngradeCaution:   f.Regime.DowngradeCaution,
			DowngradeDefensive: f.Regime.DowngradeDefensive,
			DwellSteps:         f.Regime.DwellSteps,
			CooldownSteps:      f.Regime.CooldownSteps,
			InhibitionGains:    f.Regime.InhibitionGains,
			TauScales:          f.Regime.TauScales,
			MinGain:            f.Regime.MinGain,
			MaxGain:            f.Regime.MaxGain,
			MinTau:             f.Regime.MinTau,
			MaxTau:             f.Regime.MaxTau,
		},
		Synergy: synergy.Config{
			Alpha:     f.Synergy.Alpha,
			MinTrials: f.Synergy.MinTrials,
			DeltaMin:  f.Synergy.DeltaMin,
			DeltaMax:  f.Synergy.DeltaMax,
			Seed:      f.Synergy.Seed,
			Shards:    f.Synergy.Shards,
		},
	}
}

// FixtureConfigFrom flattens a core.Config into fixture form.
func FixtureConfigFrom(c core.Config) FixtureConfig {
	return FixtureConfig{
		Dim:                 c.Dim,
		Enabled:             c.Enabled,
		Epsilon:             c.Epsilon,
		TopK:                c.TopK,
		SimilarityThreshold: c.SimilarityThreshold,
		RetrievalWeight:     c.RetrievalWeight,
		Predictor: FixturePredictorConfig{
			Alpha:    c.Predictor.Alpha,
			MaxDelta: c.Predictor.MaxDelta,
		},
		Trace: FixtureTraceConfig{
			Lambda1: c.Trace.Lambda1,
			Lambda2: c.Trace.Lambda2,
			Lambda3: c.Trace.Lambda3,
			Theta1:  c.Trace.Theta1,
			Theta2:  c.Trace.Theta2,
			G12:     c.Trace.G12,
			G23:     c.Trace.G23,
		},
		Lattice: FixtureLatticeConfig{Capacity: c.Lattice.Capacity},
		Rhythm: FixtureRhythmConfig{
			WakeDuration:  c.Rhythm.WakeDuration,
			SleepDuration: c.Rhythm.SleepDuration,
		},
		Regime: FixtureRegimeConfig{
			UpgradeCaution:     c.Regime.UpgradeCaution,
			UpgradeDefensive:   c.Regime.UpgradeDefensive,
			DowngradeCaution:   c.Regime.DowngradeCaution,
			DowngradeDefensive: c.Regime.DowngradeDefensive,
			DwellSteps:         c.Regime.DwellSteps,
			CooldownSteps:      c.Regime.CooldownSteps,
			InhibitionGains:    c.Regime.InhibitionGains,
			TauScales:          c.Regime.TauScales,
			MinGain:            c.Regime.MinGain,
			MaxGain:            c.Regime.MaxGain,
			MinTau:             c.Regime.MinTau,
			MaxTau:             c.Regime.MaxTau,
		},
		Synergy: FixtureSynergyConfig{
			Alpha:     c.Synergy.Alpha,
			MinTrials: c.Synergy.MinTrials,
			DeltaMin:  c.Synergy.DeltaMin,
			DeltaMax:  c.Synergy.DeltaMax,
			Seed:      c.Synergy.Seed,
			Shards:    c.Synergy.Shards,
		},
	}
}

// #endregion conversion

// #region io

// LoadFixture reads and parses a fixture JSON file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}

// SaveFixture writes a fixture as indented JSON.
func SaveFixture(path string, f Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion io

// #region fixture-run

// Mismatch describes a step whose replayed outcome differs from the
// fixture's expectation.
type Mismatch struct {
	Index int
	Field string
	Want  string
	Got   string
}

// RunFixture replays the fixture and compares against its expectations.
// Empty expected fields are not compared.
func RunFixture(f Fixture) ([]Result, Summary, []Mismatch, error) {
	events := make([]Event, len(f.Events))
	for i, e := range f.Events {
		events[i] = Event{
			Observed:   e.Observed,
			Risk:       e.Risk,
			Signature:  e.Signature,
			Candidates: e.Candidates,
		}
	}

	results, summary, err := Run(f.Config.CoreConfig(), events)
	if err != nil {
		return nil, Summary{}, nil, err
	}

	var mismatches []Mismatch
	for i, exp := range f.Expected {
		if i >= len(results) {
			break
		}
		got := results[i]
		if exp.Regime != "" && got.Regime != exp.Regime {
			mismatches = append(mismatches, Mismatch{i, "regime", exp.Regime, got.Regime})
		}
		if got.Consolidated != exp.Consolidated {
			mismatches = append(mismatches, Mismatch{i, "consolidated",
				fmt.Sprintf("%v", exp.Consolidated), fmt.Sprintf("%v", got.Consolidated)})
		}
		if exp.Combo != "" && got.Combo != exp.Combo {
			mismatches = append(mismatches, Mismatch{i, "combo", exp.Combo, got.Combo})
		}
	}
	return results, summary, mismatches, nil
}

// #endregion fixture-run
