package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/replay"
)

var (
	exportOut   string
	exportSteps int
	exportSeed  int64
	exportDim   int
)

// ExportCmd captures a synthetic run as a replayable fixture.
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a synthetic run as a replay fixture",
	Long: `Export generates a deterministic event stream, runs it through an
adaptive core, and writes a fixture whose expectations capture the
observed per-step outcomes. Replaying the fixture later must reproduce
them exactly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := core.DefaultConfig()
		config.Dim = exportDim
		config.Predictor.Dim = exportDim
		config.Trace.Dim = exportDim
		config.Lattice.Dim = exportDim
		config.Synergy.Seed = exportSeed

		inputs := syntheticEvents(exportSeed, exportSteps, exportDim)
		events := make([]replay.Event, len(inputs))
		for i, in := range inputs {
			events[i] = replay.Event{
				Observed:   in.Observed,
				Risk:       in.Risk,
				Signature:  in.Signature,
				Candidates: in.Candidates,
			}
		}

		results, summary, err := replay.Run(config, events)
		if err != nil {
			return err
		}

		fixture := replay.Fixture{
			Description: fmt.Sprintf("synthetic run, seed %d, %d steps", exportSeed, exportSteps),
			Config:      replay.FixtureConfigFrom(config),
			Events:      make([]replay.FixtureEvent, len(events)),
			Expected:    make([]replay.FixtureExpect, len(results)),
		}
		for i, e := range events {
			fixture.Events[i] = replay.FixtureEvent{
				Observed:   e.Observed,
				Risk:       e.Risk,
				Signature:  e.Signature,
				Candidates: e.Candidates,
			}
		}
		for i, r := range results {
			fixture.Expected[i] = replay.FixtureExpect{
				Regime:       r.Regime,
				Consolidated: r.Consolidated,
				Combo:        r.Combo,
			}
		}

		if err := replay.SaveFixture(exportOut, fixture); err != nil {
			return err
		}
		fmt.Printf("wrote %s: %d events, final regime %s\n", exportOut, len(events), summary.FinalRegime)
		return nil
	},
}

func init() {
	ExportCmd.Flags().StringVar(&exportOut, "out", "fixture.json", "output fixture path")
	ExportCmd.Flags().IntVar(&exportSteps, "steps", 64, "number of synthetic steps")
	ExportCmd.Flags().Int64Var(&exportSeed, "seed", 42, "noise and exploration seed")
	ExportCmd.Flags().IntVar(&exportDim, "dim", 32, "observation dimensionality")
}
