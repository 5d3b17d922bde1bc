package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
)

const (
	maxTitleWidth = 60
	maxURLWidth   = 50
	timeLayout    = "2006-01-02 15:04"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderFeeds(w io.Writer, feeds []*domain.Feed) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Topic", "Enabled", "Limit", "Last Processed"})
	for _, f := range feeds {
		t.AppendRow(table.Row{f.ID, f.Topic, f.Enabled, f.ResultLimit, formatTime(f.LastProcessedAt)})
	}
	t.Render()
}

func renderArticles(w io.Writer, articles []*domain.Article) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Status", "Retries", "Next Retry", "Title", "URL"})
	for _, a := range articles {
		t.AppendRow(table.Row{
			a.ID,
			a.Status,
			a.RetryCount,
			formatTime(a.NextRetryAt),
			text.Trim(a.DisplayTitle(), maxTitleWidth),
			text.Trim(articleLink(a), maxURLWidth),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(articles)})
	t.Render()
}

func renderSummary(w io.Writer, s ingest.Summary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"Feeds processed", s.FeedsProcessed},
		{"Feeds failed", s.FeedsFailed},
		{"Articles processed", s.ArticlesProcessed},
		{"Articles created", s.ArticlesCreated},
		{"Articles duplicate", s.ArticlesDuplicate},
		{"Articles failed", s.ArticlesFailed},
		{"Retries scheduled", s.RetriesScheduled},
	})
	t.Render()
}

// articleLink falls back to the aggregator link for unresolved articles.
func articleLink(a *domain.Article) string {
	if u := a.URL(); u != "" {
		return u
	}
	return a.SourceLink
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}
