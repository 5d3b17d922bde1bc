package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infracontext "github.com/jonesrussell/north-cloud/unfurl/infrastructure/context"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
)

func newProcessCommand(flags *globalFlags) *cobra.Command {
	var feedID string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run every enabled feed, or one feed with --feed",
		Long: `Run the ingestion pipeline synchronously and print the run summary.
The manual cooldown applies per process, so a CLI run never blocks an API run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDeps(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := infracontext.WithRunTimeout(cmd.Context())
			defer cancel()

			var summary ingest.Summary
			if feedID != "" {
				summary, err = d.components.Orchestrator.ProcessFeed(ctx, feedID)
			} else {
				summary, err = d.components.Orchestrator.ProcessAll(ctx)
			}
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}

			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedID, "feed", "", "process only this feed id")
	return cmd
}
