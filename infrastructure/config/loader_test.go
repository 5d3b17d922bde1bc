package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/config"
)

type sampleConfig struct {
	Name     string                `yaml:"name"     env:"SAMPLE_NAME"`
	Timeout  time.Duration         `yaml:"timeout"  env:"SAMPLE_TIMEOUT"`
	Enabled  bool                  `yaml:"enabled"  env:"SAMPLE_ENABLED"`
	Origins  []string              `yaml:"origins"  env:"SAMPLE_ORIGINS"`
	Database config.DatabaseConfig `yaml:"database"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := writeConfig(t, `
name: unfurl
timeout: 5s
database:
  host: db.internal
  dbname: unfurl
`)

	cfg, err := config.Load[sampleConfig](path)
	require.NoError(t, err)

	assert.Equal(t, "unfurl", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SAMPLE_NAME", "from-env")
	t.Setenv("SAMPLE_TIMEOUT", "250ms")
	t.Setenv("SAMPLE_ENABLED", "yes")
	t.Setenv("SAMPLE_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DB_HOST", "env-host")

	path := writeConfig(t, "name: from-file\ndatabase:\n  host: file-host\n")

	cfg, err := config.Load[sampleConfig](path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins)
	assert.Equal(t, "env-host", cfg.Database.Host)
}

func TestLoadWithDefaults_EnvWinsOverDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_PORT", "6543")

	path := writeConfig(t, "name: x\n")

	cfg, err := config.LoadWithDefaults(path, func(c *sampleConfig) {
		c.Database.SetDefaults()
	})
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load[sampleConfig]("/nonexistent/config.yml")
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/unfurl/config.yml")
	assert.Equal(t, "/etc/unfurl/config.yml", config.GetConfigPath("config.yml"))
}

func TestDatabaseConfig_DSNAndURL(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}

	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.URL())
}

func TestValidateDuration(t *testing.T) {
	t.Parallel()

	assert.NoError(t, config.ValidateDuration("t", 5*time.Second, 10*time.Second))
	assert.Error(t, config.ValidateDuration("t", 0, 10*time.Second))
	assert.Error(t, config.ValidateDuration("t", 11*time.Second, 10*time.Second))
}
