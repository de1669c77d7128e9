// Package commands implements the memctl subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/replay"
)

var (
	replayFixture string
	replayJSON    bool
)

// ReplayCmd replays a recorded fixture through a fresh core.
var ReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a fixture and check its expectations",
	Long: `Replay loads a JSON fixture, runs its events through a freshly
constructed core, and compares each step against the fixture's expected
outcomes. Any mismatch fails the command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := replay.LoadFixture(replayFixture)
		if err != nil {
			return err
		}

		results, summary, mismatches, err := replay.RunFixture(fixture)
		if err != nil {
			return err
		}

		if replayJSON {
			out, err := json.MarshalIndent(map[string]any{
				"results":    results,
				"summary":    summary,
				"mismatches": mismatches,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal output: %w", err)
			}
			fmt.Println(string(out))
		} else {
			for _, r := range results {
				fmt.Printf("step %3d  regime=%-9s phase=%-5s delta=%.4f consolidated=%v retrieved=%d combo=%s\n",
					r.Index, r.Regime, r.Phase, r.DeltaNorm, r.Consolidated, r.Retrieved, r.Combo)
			}
			fmt.Printf("steps=%d consolidations=%d evictions=%d flips=%d final=%s\n",
				summary.Steps, summary.Consolidations, summary.Evictions, summary.Flips, summary.FinalRegime)
		}

		if len(mismatches) > 0 {
			for _, m := range mismatches {
				fmt.Fprintf(os.Stderr, "mismatch at step %d: %s want %s got %s\n",
					m.Index, m.Field, m.Want, m.Got)
			}
			return fmt.Errorf("%d expectation mismatch(es)", len(mismatches))
		}
		return nil
	},
}

func init() {
	ReplayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to fixture JSON (required)")
	ReplayCmd.Flags().BoolVar(&replayJSON, "json", false, "emit results as JSON")
	ReplayCmd.MarkFlagRequired("fixture")
}
