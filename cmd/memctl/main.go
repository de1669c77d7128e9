// Package main provides the memctl CLI for driving and inspecting the
// memory core: fixture replay, simulated runs, and telemetry inspection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/cmd/memctl/commands"
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Drive and inspect the adaptive memory core",
	Long: `memctl runs the adaptive memory pipeline outside a host process.

It provides:
  - Fixture replay as a deterministic regression check
  - Synthetic simulation with noise-driven risk and event streams
  - Inspection of persisted step metrics and regime transitions
  - Fixture export from simulated runs`,
}

func main() {
	rootCmd.AddCommand(
		commands.ReplayCmd,
		commands.SimulateCmd,
		commands.InspectCmd,
		commands.ExportCmd,
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
