package bootstrap

import (
	"net"

	"github.com/jmoiron/sqlx"

	infrahttp "github.com/jonesrussell/north-cloud/unfurl/infrastructure/http"
	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/admission"
	"github.com/jonesrussell/north-cloud/unfurl/internal/aggregator"
	"github.com/jonesrussell/north-cloud/unfurl/internal/config"
	"github.com/jonesrussell/north-cloud/unfurl/internal/decoder"
	"github.com/jonesrussell/north-cloud/unfurl/internal/extractor"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
	"github.com/jonesrussell/north-cloud/unfurl/internal/metrics"
	"github.com/jonesrussell/north-cloud/unfurl/internal/publisher"
	"github.com/jonesrussell/north-cloud/unfurl/internal/repository"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ssrf"
)

// Components are the long-lived services shared by the HTTP server and scheduler.
type Components struct {
	Orchestrator *ingest.Orchestrator
	Publisher    *publisher.Publisher
	APIKeys      *repository.APIKeyRepository
	Metrics      *metrics.Metrics
}

// SetupComponents wires repositories, outbound clients, the orchestrator and the publisher.
func SetupComponents(
	cfg *config.Config,
	db *sqlx.DB,
	cache publisher.Cache,
	log infralogger.Logger,
) *Components {
	m := metrics.New()

	feedRepo := repository.NewFeedRepository(db)
	articleRepo := repository.NewArticleRepository(db, cfg.Ingest.MaxAttempts)
	keyRepo := repository.NewAPIKeyRepository(db)

	guard := ssrf.NewGuard()

	// Article fetches re-check every redirect hop and every dialed address.
	fetcher := extractor.New(cfg.Extractor, log.With(infralogger.String("component", "extractor")),
		extractor.WithRedirectPolicy(guard.RedirectPolicy(cfg.Extractor.MaxRedirects)),
		extractor.WithDialContext(guard.DialContext(&net.Dialer{Timeout: cfg.Extractor.ConnectTimeout})),
	)

	resolver := decoder.New(cfg.Decoder,
		infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Decoder.Timeout}),
		log.With(infralogger.String("component", "decoder")),
	)

	reader := aggregator.NewReader(
		infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: aggregator.DefaultTimeout}),
		cfg.Extractor.UserAgent,
		log.With(infralogger.String("component", "aggregator")),
	)

	orchestrator := ingest.New(cfg.Ingest, ingest.Deps{
		Feeds:     feedRepo,
		Articles:  articleRepo,
		Reader:    reader,
		Resolver:  resolver,
		Validator: guard,
		Fetcher:   fetcher,
		Logger:    log.With(infralogger.String("component", "ingest")),
		Metrics:   m,
	}, ingest.WithRateWindow(admission.NewSlidingWindow(cfg.RateLimit.Requests, cfg.RateLimit.Window, nil)))

	pub := publisher.New(cfg.Publisher, articleRepo, cache,
		log.With(infralogger.String("component", "publisher")),
		publisher.WithMetrics(m),
	)

	return &Components{
		Orchestrator: orchestrator,
		Publisher:    pub,
		APIKeys:      keyRepo,
		Metrics:      m,
	}
}
