package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/repository"
)

const defaultArticleRows = 20

func newArticlesCommand(flags *globalFlags) *cobra.Command {
	var (
		filter domain.ArticleFilter
		status string
	)

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List recent articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				s := domain.ArticleStatus(status)
				if !s.Valid() {
					return fmt.Errorf("invalid status %q", status)
				}
				filter.Status = s
			}

			d, err := loadDeps(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := repository.NewArticleRepository(d.db, d.cfg.Ingest.MaxAttempts)
			articles, err := repo.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list articles: %w", err)
			}
			if len(articles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No articles found")
				return nil
			}
			renderArticles(cmd.OutOrStdout(), articles)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Topic, "topic", "", "only articles from this feed topic")
	cmd.Flags().StringVar(&filter.FeedID, "feed", "", "only articles from this feed id")
	cmd.Flags().StringVar(&status, "status", "", "pending, success or failed (default all)")
	cmd.Flags().IntVar(&filter.Limit, "limit", defaultArticleRows, "maximum rows")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "rows to skip")
	return cmd
}
