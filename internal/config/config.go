// Package config holds the unfurl service configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	infraconfig "github.com/jonesrussell/north-cloud/unfurl/infrastructure/config"
	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/admission"
	"github.com/jonesrussell/north-cloud/unfurl/internal/decoder"
	"github.com/jonesrussell/north-cloud/unfurl/internal/extractor"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
	"github.com/jonesrussell/north-cloud/unfurl/internal/publisher"
)

const (
	DefaultConfigPath = "config.yml"

	defaultServerHost    = "0.0.0.0"
	defaultServerPort    = 8095
	defaultServerTimeout = 30 * time.Second
	defaultProcessCron   = "*/30 * * * *"
	defaultRetryCron     = "*/5 * * * *"

	// Manual runs are synchronous, so writes must outlast a full feed run.
	defaultWriteTimeout = 10 * time.Minute
)

type Config struct {
	Debug     bool                       `env:"APP_DEBUG" yaml:"debug"`
	Server    ServerConfig               `yaml:"server"`
	Database  infraconfig.DatabaseConfig `yaml:"database"`
	Redis     infraconfig.RedisConfig    `yaml:"redis"`
	Decoder   decoder.Config             `yaml:"decoder"`
	Extractor extractor.Config           `yaml:"extractor"`
	Ingest    ingest.Config              `yaml:"ingest"`
	RateLimit RateLimitConfig            `yaml:"ratelimit"`
	Publisher publisher.Config           `yaml:"publisher"`
	Scheduler SchedulerConfig            `yaml:"scheduler"`
	Logging   logger.Config              `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

// RateLimitConfig is the per-API-key sliding window.
type RateLimitConfig struct {
	Requests int           `env:"RATELIMIT_REQUESTS" yaml:"requests"`
	Window   time.Duration `env:"RATELIMIT_WINDOW"   yaml:"window"`
}

// SchedulerConfig drives periodic runs. Disabled by default; external
// triggers call the API instead.
type SchedulerConfig struct {
	Enabled     bool   `env:"SCHEDULER_ENABLED"      yaml:"enabled"`
	ProcessCron string `env:"SCHEDULER_PROCESS_CRON" yaml:"process_cron"`
	RetryCron   string `env:"SCHEDULER_RETRY_CRON"   yaml:"retry_cron"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	return cfg, nil
}

// Validate enforces required fields and the outbound request bounds.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if err := infraconfig.ValidatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Redis.Enabled {
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			return err
		}
	}
	if err := infraconfig.ValidateDuration("decoder.timeout", c.Decoder.Timeout, decoder.DefaultTimeout); err != nil {
		return err
	}
	if err := infraconfig.ValidateDuration(
		"extractor.connect_timeout", c.Extractor.ConnectTimeout, extractor.DefaultConnectTimeout,
	); err != nil {
		return err
	}
	if err := infraconfig.ValidateDuration("extractor.timeout", c.Extractor.Timeout, extractor.DefaultTimeout); err != nil {
		return err
	}
	if err := infraconfig.ValidateIntRange(
		"extractor.max_redirects", c.Extractor.MaxRedirects, 0, extractor.DefaultMaxRedirects,
	); err != nil {
		return err
	}
	if err := infraconfig.ValidateIntRange("ratelimit.requests", c.RateLimit.Requests, 1, 1_000_000); err != nil {
		return err
	}
	if err := infraconfig.ValidateDuration("ratelimit.window", c.RateLimit.Window, 0); err != nil {
		return err
	}
	if err := infraconfig.ValidateIntRange(
		"publisher.max_limit", c.Publisher.MaxLimit, 1, publisher.MaxLimit,
	); err != nil {
		return err
	}
	if c.Scheduler.Enabled && (c.Scheduler.ProcessCron == "" || c.Scheduler.RetryCron == "") {
		return errors.New("scheduler.process_cron and scheduler.retry_cron are required when the scheduler is enabled")
	}
	return infraconfig.ValidateLogLevel(c.Logging.Level)
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}

	cfg.Database.SetDefaults()
	cfg.Redis.SetDefaults()
	cfg.Decoder.SetDefaults()
	cfg.Extractor.SetDefaults()
	cfg.Ingest.SetDefaults()
	cfg.Publisher.SetDefaults()
	cfg.Logging.SetDefaults()

	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = admission.DefaultWindowLimit
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = admission.DefaultWindowPeriod
	}
	if cfg.Scheduler.ProcessCron == "" {
		cfg.Scheduler.ProcessCron = defaultProcessCron
	}
	if cfg.Scheduler.RetryCron == "" {
		cfg.Scheduler.RetryCron = defaultRetryCron
	}
}
