// Package config loads chess2lichess configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chess2lichess/chess2lichess/internal/filter"
)

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Import      ImportConfig      `yaml:"import"`
	Storage     StorageConfig     `yaml:"storage"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type SourceConfig struct {
	Mode      string        `yaml:"mode" validate:"oneof=http file bucket"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0s"`
	Dir       string        `yaml:"dir" validate:"required_if=Mode file"`
	BucketURL string        `yaml:"bucket_url" validate:"required_if=Mode bucket"`
	Prefix    string        `yaml:"prefix"`
}

type DestinationConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0s"`
}

type ImportConfig struct {
	PacingDelay       time.Duration     `yaml:"pacing_delay" validate:"gte=0s"`
	RateLimitCooldown time.Duration     `yaml:"rate_limit_cooldown" validate:"gte=0s"`
	RateLimitRetries  int               `yaml:"rate_limit_retries" validate:"gte=1,lte=5"`
	ConvertTimezone   bool              `yaml:"convert_timezone"`
	Timezone          string            `yaml:"timezone" validate:"required"`
	DryRun            bool              `yaml:"dry_run"`
	Categories        map[string]string `yaml:"categories" validate:"required,min=1,dive,keys,required,endkeys,numeric"`
}

type StorageConfig struct {
	LedgerPath         string `yaml:"ledger_path" validate:"required"`
	ArchivePath        string `yaml:"archive_path" validate:"required"`
	CheckpointEnabled  bool   `yaml:"checkpoint_enabled"`
	CheckpointDir      string `yaml:"checkpoint_dir" validate:"required_if=CheckpointEnabled true"`
	MirrorURL          string `yaml:"mirror_url"`
	MirrorPrefix       string `yaml:"mirror_prefix"`
	ParquetCompression string `yaml:"parquet_compression" validate:"oneof=snappy zstd none"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	Strict      bool   `yaml:"strict"`
}

// AuditConfig controls the hash-chained run audit trail.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir" validate:"required_if=Enabled true"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Format string `yaml:"format" validate:"oneof=text json"`
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Mode:      "http",
			BaseURL:   "https://api.chess.com/pub",
			UserAgent: "chess2lichess/1.0",
			Timeout:   30 * time.Second,
		},
		Destination: DestinationConfig{
			BaseURL: "https://lichess.org",
			Timeout: 30 * time.Second,
		},
		Import: ImportConfig{
			PacingDelay:       7500 * time.Millisecond,
			RateLimitCooldown: 60 * time.Second,
			RateLimitRetries:  1,
			Timezone:          "Local",
			Categories:        filter.DefaultCategories(),
		},
		Storage: StorageConfig{
			LedgerPath:         "./chess_com_games.csv",
			ArchivePath:        "./chess_com_games.pgn",
			CheckpointEnabled:  true,
			CheckpointDir:      "./.chess2lichess",
			MirrorPrefix:       "chess2lichess/",
			ParquetCompression: "snappy",
		},
		Audit: AuditConfig{
			Dir: "./.chess2lichess/audit",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any, with ${VAR} expansion), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		log.Printf("[config] loading %s", path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config: %v", ErrInvalidConfig, err)
		}

		expanded := os.ExpandEnv(string(data))

		// A file that names categories replaces the default table.
		cfg.Import.Categories = nil
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %v", ErrInvalidConfig, err)
		}
		if len(cfg.Import.Categories) == 0 {
			cfg.Import.Categories = filter.DefaultCategories()
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Destination.Token = getenvDefault("LICHESS_TOKEN", c.Destination.Token)
	c.Destination.BaseURL = getenvDefault("LICHESS_BASE_URL", c.Destination.BaseURL)
	c.Source.BaseURL = getenvDefault("CHESSCOM_BASE_URL", c.Source.BaseURL)
	c.Source.Mode = getenvDefault("SOURCE_MODE", c.Source.Mode)
	c.Source.Dir = getenvDefault("SOURCE_DIR", c.Source.Dir)
	c.Source.BucketURL = getenvDefault("SOURCE_BUCKET_URL", c.Source.BucketURL)
	c.Storage.LedgerPath = getenvDefault("CHESS2LICHESS_LEDGER", c.Storage.LedgerPath)
	c.Storage.ArchivePath = getenvDefault("CHESS2LICHESS_ARCHIVE", c.Storage.ArchivePath)
	c.Storage.MirrorURL = getenvDefault("CHESS2LICHESS_MIRROR_URL", c.Storage.MirrorURL)
	c.Import.Timezone = getenvDefault("CHESS2LICHESS_TIMEZONE", c.Import.Timezone)
	c.Catalog.PostgresDSN = getenvDefault("CATALOG_DSN", c.Catalog.PostgresDSN)
	c.Logging.Level = getenvDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenvDefault("LOG_FORMAT", c.Logging.Format)
	c.Audit.Dir = getenvDefault("AUDIT_DIR", c.Audit.Dir)

	if v := os.Getenv("AUDIT_ENDPOINT"); v != "" {
		c.Audit.Enabled = true
		c.Audit.Endpoint = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	if v := os.Getenv("CATALOG_STRICT"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: CATALOG_STRICT: %v", ErrInvalidConfig, err)
		}
		c.Catalog.Strict = strict
	}
	if v := os.Getenv("PACING_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: PACING_DELAY: %v", ErrInvalidConfig, err)
		}
		c.Import.PacingDelay = d
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and that the timezone resolves.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		var details []string
		for _, fe := range verrs {
			details = append(details, describe(fe))
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(details, "; "))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be a number of seconds", field)
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Location resolves Import.Timezone. "Local" is the machine timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Import.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Import.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Import.Timezone, err)
	}
	return loc, nil
}

// LedgerLocation is the location ledger timestamps are written in: the
// configured timezone when conversion is on, UTC otherwise.
func (c *Config) LedgerLocation() (*time.Location, error) {
	if !c.Import.ConvertTimezone {
		return time.UTC, nil
	}
	return c.Location()
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
