package commands

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/eval"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/provenance"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/telemetry"
)

var (
	simulateSteps int
	simulateSeed  int64
	simulateDim   int
	simulateDB    string
)

// SimulateCmd drives the core with noise-generated events.
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the core against a synthetic event stream",
	Long: `Simulate builds an adaptive core and feeds it smoothly varying
observation and risk streams generated from simplex noise. With --db the
step metrics and regime transitions are persisted for later inspection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := core.DefaultConfig()
		config.Dim = simulateDim
		config.Predictor.Dim = simulateDim
		config.Trace.Dim = simulateDim
		config.Lattice.Dim = simulateDim
		config.Synergy.Seed = simulateSeed

		var sink telemetry.Sink
		var store *provenance.Store
		var async *provenance.AsyncSink
		if simulateDB != "" {
			var err error
			store, err = provenance.Open(simulateDB)
			if err != nil {
				return err
			}
			defer store.Close()
			async = provenance.NewAsyncSink(store, 1024)
			sink = async
		}

		c, err := core.New(config, sink)
		if err != nil {
			return err
		}

		events := syntheticEvents(simulateSeed, simulateSteps, simulateDim)
		results := make([]core.StepResult, 0, len(events))
		var consolidations, evictions int
		var usage int
		final := c.Regime()
		prevLevel := final.Level
		for i, in := range events {
			result, err := c.Step(in)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			results = append(results, result)
			if result.Consolidated {
				consolidations++
			}
			if result.Evicted {
				evictions++
			}
			usage = result.UsageBytes
			final = result.Regime
			if store != nil && result.Regime.Transitioned {
				if err := store.InsertTransition(result.StepID, prevLevel.String(), result.Regime.Level.String(), float64(in.Risk)); err != nil {
					return err
				}
			}
			prevLevel = result.Regime.Level
		}
		if async != nil {
			async.Close()
			if dropped := async.Dropped(); dropped > 0 {
				fmt.Printf("dropped %s metrics under backpressure\n", humanize.Comma(int64(dropped)))
			}
		}

		fmt.Printf("steps=%d consolidations=%d evictions=%d flips=%d final=%s lattice=%d trace=%s\n",
			simulateSteps, consolidations, evictions, final.FlipCount, final.Level,
			c.LatticeLen(), humanize.Bytes(uint64(usage)))

		check := eval.NewHarness(config).Run(results, c.LatticeLen())
		fmt.Printf("invariants: %s\n", check.Reason)
		if !check.Passed {
			return fmt.Errorf("invariant check failed")
		}
		return nil
	},
}

// syntheticEvents produces a deterministic stream of observations and
// risks from simplex noise. Each vector component gets its own noise
// lane; risk follows a slower lane so regimes have time to dwell.
func syntheticEvents(seed int64, steps, dim int) []core.StepInput {
	obsNoise := opensimplex.NewNormalized(seed)
	riskNoise := opensimplex.NewNormalized(seed + 1)

	candidates := []string{"retrieve-heavy", "trace-heavy", "balanced"}
	events := make([]core.StepInput, steps)
	for i := range events {
		t := float64(i)
		observed := make([]float32, dim)
		for d := 0; d < dim; d++ {
			observed[d] = float32(obsNoise.Eval2(t*0.1, float64(d)*0.7)*4 - 2)
		}
		events[i] = core.StepInput{
			Observed:   observed,
			Risk:       float32(riskNoise.Eval2(t*0.02, 0)),
			Signature:  fmt.Sprintf("regime-%d", i/32),
			Candidates: candidates,
		}
	}
	return events
}

func init() {
	SimulateCmd.Flags().IntVar(&simulateSteps, "steps", 256, "number of synthetic steps")
	SimulateCmd.Flags().Int64Var(&simulateSeed, "seed", 42, "noise and exploration seed")
	SimulateCmd.Flags().IntVar(&simulateDim, "dim", 32, "observation dimensionality")
	SimulateCmd.Flags().StringVar(&simulateDB, "db", "", "persist telemetry to this SQLite file")
}
