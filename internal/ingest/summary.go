package ingest

import "github.com/jonesrussell/north-cloud/unfurl/internal/metrics"

// Outcome is the result of one article attempt.
type Outcome string

const (
	OutcomeCreated   Outcome = metrics.OutcomeCreated
	OutcomeDuplicate Outcome = metrics.OutcomeDuplicate
	OutcomeRetrying  Outcome = metrics.OutcomeRetrying
	OutcomeFailed    Outcome = metrics.OutcomeFailed
)

// Summary counts the outcomes of a run. Retrying articles count as failed.
type Summary struct {
	FeedsProcessed    int `json:"feeds_processed"`
	FeedsFailed       int `json:"feeds_failed"`
	ArticlesProcessed int `json:"articles_processed"`
	ArticlesCreated   int `json:"articles_created"`
	ArticlesFailed    int `json:"articles_failed"`
	ArticlesDuplicate int `json:"articles_duplicate"`
	RetriesScheduled  int `json:"retries_scheduled"`
}

func (s *Summary) add(o Outcome) {
	s.ArticlesProcessed++
	switch o {
	case OutcomeCreated:
		s.ArticlesCreated++
	case OutcomeDuplicate:
		s.ArticlesDuplicate++
	case OutcomeRetrying:
		s.ArticlesFailed++
		s.RetriesScheduled++
	case OutcomeFailed:
		s.ArticlesFailed++
	}
}

func (s *Summary) merge(other Summary) {
	s.FeedsProcessed += other.FeedsProcessed
	s.FeedsFailed += other.FeedsFailed
	s.ArticlesProcessed += other.ArticlesProcessed
	s.ArticlesCreated += other.ArticlesCreated
	s.ArticlesFailed += other.ArticlesFailed
	s.ArticlesDuplicate += other.ArticlesDuplicate
	s.RetriesScheduled += other.RetriesScheduled
}
