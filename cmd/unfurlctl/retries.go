package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infracontext "github.com/jonesrussell/north-cloud/unfurl/infrastructure/context"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
	"github.com/jonesrussell/north-cloud/unfurl/internal/repository"
)

func newRetriesCommand(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "retries",
		Short: "List failed articles whose retry time has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDeps(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := repository.NewArticleRepository(d.db, d.cfg.Ingest.MaxAttempts)
			articles, err := repo.FindReadyForRetry(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list retries: %w", err)
			}
			if len(articles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No retries due")
				return nil
			}
			renderArticles(cmd.OutOrStdout(), articles)
			return nil
		},
	}
	cmd.PersistentFlags().IntVar(&limit, "limit", ingest.DefaultRetryBatchSize, "maximum articles")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Process one batch of due retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDeps(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := infracontext.WithRunTimeout(cmd.Context())
			defer cancel()

			summary, err := d.components.Orchestrator.ProcessReadyRetries(ctx, limit)
			if err != nil {
				return fmt.Errorf("process retries: %w", err)
			}
			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <article-id>",
		Short: "Reprocess one article now with a fresh attempt count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer d.Close()

			outcome, err := d.components.Orchestrator.RetryArticle(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("retry article: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], outcome)
			return nil
		},
	})

	return cmd
}
