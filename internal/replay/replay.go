// Package replay runs recorded event sequences through a freshly
// constructed core, entirely in memory. Because the pipeline is
// deterministic for a fixed config and seed, a fixture captured once can
// be replayed forever as a regression check.
package replay

import (
	"fmt"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
)

// #region types

// Event is a single recorded pipeline input.
type Event struct {
	Observed   []float32
	Risk       float32
	Signature  string
	Candidates []string
}

// Result captures one replayed step.
type Result struct {
	Index        int
	Regime       string
	Phase        string
	DeltaNorm    float32
	Consolidated bool
	Evicted      bool
	Retrieved    int
	Combo        string
}

// Summary aggregates a replay run.
type Summary struct {
	Steps          int
	Consolidations int
	Evictions      int
	Flips          uint64
	FinalRegime    string
}

// #endregion types

// #region run

// Run replays events through a new core built from config and returns
// per-step results plus the aggregate summary.
func Run(config core.Config, events []Event) ([]Result, Summary, error) {
	c, err := core.New(config, nil)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("build core: %w", err)
	}

	results := make([]Result, 0, len(events))
	summary := Summary{Steps: len(events)}

	for i, ev := range events {
		stepResult, err := c.Step(core.StepInput{
			Observed:   ev.Observed,
			Risk:       ev.Risk,
			Signature:  ev.Signature,
			Candidates: ev.Candidates,
		})
		if err != nil {
			return nil, Summary{}, fmt.Errorf("step %d: %w", i, err)
		}

		results = append(results, Result{
			Index:        i,
			Regime:       stepResult.Regime.Level.String(),
			Phase:        string(stepResult.Phase),
			DeltaNorm:    stepResult.DeltaNorm,
			Consolidated: stepResult.Consolidated,
			Evicted:      stepResult.Evicted,
			Retrieved:    len(stepResult.Retrieved),
			Combo:        stepResult.Combo,
		})
		if stepResult.Consolidated {
			summary.Consolidations++
		}
		if stepResult.Evicted {
			summary.Evictions++
		}
		summary.Flips = stepResult.Regime.FlipCount
		summary.FinalRegime = stepResult.Regime.Level.String()
	}

	if len(events) == 0 {
		summary.FinalRegime = c.Regime().Level.String()
	}
	return results, summary, nil
}

// #endregion run
