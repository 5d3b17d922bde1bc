package bootstrap

import (
	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/config"
	"github.com/jonesrussell/north-cloud/unfurl/internal/scheduler"
)

// SetupScheduler returns nil when periodic runs are disabled.
func SetupScheduler(cfg *config.Config, runner scheduler.Runner, log infralogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		log.Info("Scheduler disabled, runs are triggered through the API")
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	return scheduler.New(runner, cfg.Scheduler.ProcessCron, cfg.Scheduler.RetryCron,
		log.With(infralogger.String("component", "scheduler")))
}
