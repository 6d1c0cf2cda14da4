package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7500*time.Millisecond, cfg.Import.PacingDelay)
	assert.Equal(t, 60*time.Second, cfg.Import.RateLimitCooldown)
	assert.Equal(t, 1, cfg.Import.RateLimitRetries)
	assert.Equal(t, "600", cfg.Import.Categories["rapid"])
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_LEDGER_DIR", "/var/lib/c2l")
	path := writeConfig(t, `
import:
  pacing_delay: 2s
  rate_limit_cooldown: 90s
  convert_timezone: true
  timezone: America/New_York
  categories:
    classical: "1800"
storage:
  ledger_path: ${TEST_LEDGER_DIR}/ledger.csv
logging:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Import.PacingDelay)
	assert.Equal(t, 90*time.Second, cfg.Import.RateLimitCooldown)
	assert.Equal(t, "/var/lib/c2l/ledger.csv", cfg.Storage.LedgerPath)
	assert.Equal(t, "./chess_com_games.pgn", cfg.Storage.ArchivePath)
	assert.Equal(t, map[string]string{"classical": "1800"}, cfg.Import.Categories)
	assert.Equal(t, "json", cfg.Logging.Format)

	loc, err := cfg.LedgerLocation()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LICHESS_TOKEN", "lip_secret")
	t.Setenv("METRICS_ADDR", ":9999")
	t.Setenv("PACING_DELAY", "100ms")
	t.Setenv("CATALOG_STRICT", "true")
	t.Setenv("AUDIT_ENDPOINT", "https://audit.example.com/events")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "lip_secret", cfg.Destination.Token)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
	assert.Equal(t, 100*time.Millisecond, cfg.Import.PacingDelay)
	assert.True(t, cfg.Catalog.Strict)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "https://audit.example.com/events", cfg.Audit.Endpoint)

	t.Setenv("PACING_DELAY", "soon")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"bad source mode":     func(c *Config) { c.Source.Mode = "ftp" },
		"file mode needs dir": func(c *Config) { c.Source.Mode = "file" },
		"negative pacing":     func(c *Config) { c.Import.PacingDelay = -time.Second },
		"too many retries":    func(c *Config) { c.Import.RateLimitRetries = 10 },
		"zero retries":        func(c *Config) { c.Import.RateLimitRetries = 0 },
		"non numeric seconds": func(c *Config) { c.Import.Categories = map[string]string{"rapid": "ten"} },
		"empty ledger path":   func(c *Config) { c.Storage.LedgerPath = "" },
		"bad log level":       func(c *Config) { c.Logging.Level = "loud" },
		"unknown timezone":    func(c *Config) { c.Import.Timezone = "Mars/Olympus" },
		"bad audit endpoint":  func(c *Config) { c.Audit.Endpoint = "not a url" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLedgerLocationDefaultsToUTC(t *testing.T) {
	cfg := Default()
	loc, err := cfg.LedgerLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
