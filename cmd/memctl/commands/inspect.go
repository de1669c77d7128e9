package commands

import (
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/provenance"
)

var (
	inspectDB          string
	inspectTransitions int
)

// InspectCmd summarizes a persisted telemetry database.
var InspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize persisted step metrics and regime transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(inspectDB)
		if err != nil {
			return fmt.Errorf("stat db: %w", err)
		}

		store, err := provenance.Open(inspectDB)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("database: %s (%s)\n\n", inspectDB, humanize.Bytes(uint64(info.Size())))

		summaries, err := store.Summaries()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no metrics recorded")
		}
		for _, s := range summaries {
			fmt.Printf("%-10s %-20s count=%-8s mean=%-10.4f max=%.4f\n",
				s.Component, s.Name, humanize.Comma(int64(s.Count)), s.Mean, s.Max)
		}

		transitions, err := store.ListTransitions(inspectTransitions)
		if err != nil {
			return err
		}
		if len(transitions) > 0 {
			fmt.Printf("\nrecent regime transitions:\n")
			for _, tr := range transitions {
				fmt.Printf("%s  %s -> %s  risk=%.2f  step=%s\n",
					tr.CreatedAt, tr.FromLevel, tr.ToLevel, tr.Risk, tr.StepID)
			}
		}
		return nil
	},
}

func init() {
	InspectCmd.Flags().StringVar(&inspectDB, "db", "", "path to telemetry SQLite file (required)")
	InspectCmd.Flags().IntVar(&inspectTransitions, "transitions", 20, "how many recent transitions to show")
	InspectCmd.MarkFlagRequired("db")
}
