package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/unfurl/internal/repository"
)

func newFeedsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List configured feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDeps(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer d.Close()

			feeds, err := repository.NewFeedRepository(d.db).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list feeds: %w", err)
			}
			if len(feeds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No feeds configured")
				return nil
			}
			renderFeeds(cmd.OutOrStdout(), feeds)
			return nil
		},
	}
}
