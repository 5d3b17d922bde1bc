// Package scheduler triggers feed runs and due retries on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	infracontext "github.com/jonesrussell/north-cloud/unfurl/infrastructure/context"
	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
)

// Runner is the pipeline the schedules drive.
type Runner interface {
	ProcessAll(ctx context.Context) (ingest.Summary, error)
	ProcessReadyRetries(ctx context.Context, limit int) (ingest.Summary, error)
}

// Scheduler owns a cron instance. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron        *cron.Cron
	parser      cron.Parser
	runner      Runner
	log         logger.Logger
	processSpec string
	retrySpec   string
	ctx         context.Context
	cancel      context.CancelFunc
}

// New validates both schedules and registers the jobs. Call Start to run them.
func New(runner Runner, processSpec, retrySpec string, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:      parser,
		runner:      runner,
		log:         log,
		processSpec: processSpec,
		retrySpec:   retrySpec,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(processSpec, func() { s.RunProcess(s.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid process schedule %q: %w", processSpec, err)
	}
	if _, err := s.cron.AddFunc(retrySpec, func() { s.RunRetries(s.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid retry schedule %q: %w", retrySpec, err)
	}
	return s, nil
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()

	now := time.Now()
	for _, spec := range []string{s.processSpec, s.retrySpec} {
		if schedule, err := s.parser.Parse(spec); err == nil {
			s.log.Info("Schedule registered",
				logger.String("schedule", spec),
				logger.Time("next_run", schedule.Next(now)),
			)
		}
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunProcess runs every enabled feed once.
func (s *Scheduler) RunProcess(ctx context.Context) {
	ctx, cancel := infracontext.WithRunTimeout(ctx)
	defer cancel()

	start := time.Now()
	summary, err := s.runner.ProcessAll(ctx)
	if err != nil {
		s.log.Error("Scheduled feed run failed", logger.Error(err))
		return
	}
	s.log.Info("Scheduled feed run completed",
		logger.Int("feeds_processed", summary.FeedsProcessed),
		logger.Int("articles_created", summary.ArticlesCreated),
		logger.Int("articles_failed", summary.ArticlesFailed),
		logger.Duration("duration", time.Since(start)),
	)
}

// RunRetries processes one batch of due retries.
func (s *Scheduler) RunRetries(ctx context.Context) {
	ctx, cancel := infracontext.WithRunTimeout(ctx)
	defer cancel()

	summary, err := s.runner.ProcessReadyRetries(ctx, 0)
	if err != nil {
		s.log.Error("Scheduled retry run failed", logger.Error(err))
		return
	}
	if summary.ArticlesProcessed > 0 {
		s.log.Info("Scheduled retry run completed",
			logger.Int("articles_processed", summary.ArticlesProcessed),
			logger.Int("articles_created", summary.ArticlesCreated),
			logger.Int("articles_failed", summary.ArticlesFailed),
		)
	}
}

// cronLogger routes cron's own messages, including recovered job panics, to the service logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, cronFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, append(cronFields(keysAndValues), logger.Error(err))...)
}

func cronFields(keysAndValues []any) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
