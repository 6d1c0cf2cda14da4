package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/chess2lichess/chess2lichess/internal/audit"
	"github.com/chess2lichess/chess2lichess/internal/checkpoint"
	"github.com/chess2lichess/chess2lichess/internal/config"
	"github.com/chess2lichess/chess2lichess/internal/destination"
	"github.com/chess2lichess/chess2lichess/internal/filter"
	"github.com/chess2lichess/chess2lichess/internal/importer"
	"github.com/chess2lichess/chess2lichess/internal/ledger"
	"github.com/chess2lichess/chess2lichess/internal/logging"
	"github.com/chess2lichess/chess2lichess/internal/metadata"
	"github.com/chess2lichess/chess2lichess/internal/metrics"
	"github.com/chess2lichess/chess2lichess/internal/migrate"
	"github.com/chess2lichess/chess2lichess/internal/source"
	"github.com/chess2lichess/chess2lichess/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		log.Printf("[main] %v", err)
		return exitUsage
	}
	if opts.Version {
		log.Printf("[main] chess2lichess %s (%s)", migrate.Version, migrate.GitSHA)
		return exitOK
	}

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[main] failed to load %s: %v", opts.EnvFile, err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Printf("[main] %v", err)
		return exitUsage
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		log.Printf("[main] %v", err)
		return exitUsage
	}

	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	log.Printf("[main] chess2lichess %s (%s)", migrate.Version, migrate.GitSHA)

	if cfg.Destination.Token == "" && !cfg.Import.DryRun {
		log.Printf("[main] warning: LICHESS_TOKEN is not set, imports will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, cleanup, err := build(ctx, cfg)
	if err != nil {
		log.Printf("[main] %v", err)
		return exitFailure
	}
	defer cleanup()

	res, err := m.Run(ctx, migrate.Request{
		Username: opts.Username,
		Scope:    opts.Scope,
		Labels:   opts.Labels,
	})
	code := exitCode(err)
	switch {
	case err == nil:
		log.Printf("[main] done: %d games fetched, %d imported", res.Fetched, res.Report.Imported)
	case ctx.Err() != nil:
		log.Printf("[main] interrupted: %v", err)
	case code == exitFailure:
		log.Printf("[main] migration failed: %v", err)
	default:
		log.Printf("[main] %v", err)
	}
	return code
}

// applyFlags layers the command line over the loaded configuration.
func applyFlags(cfg *config.Config, opts *options) {
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	if opts.ConvertTZ {
		cfg.Import.ConvertTimezone = true
	}
	if opts.DryRun {
		cfg.Import.DryRun = true
	}
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, filter.ErrUnknownCategory), errors.Is(err, errUsage), errors.Is(err, config.ErrInvalidConfig):
		return exitUsage
	case errors.Is(err, filter.ErrNoGamesMatched):
		return exitNoGamesMatched
	case errors.Is(err, importer.ErrAllGamesAlreadyImported):
		return exitAlreadyImported
	default:
		return exitFailure
	}
}

// build wires the migrator from configuration. The returned cleanup closes
// every opened resource.
func build(ctx context.Context, cfg *config.Config) (*migrate.Migrator, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	src, err := source.NewGameSource(source.Config{
		Mode:      cfg.Source.Mode,
		BaseURL:   cfg.Source.BaseURL,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.Timeout,
		Dir:       cfg.Source.Dir,
		BucketURL: cfg.Source.BucketURL,
		Prefix:    cfg.Source.Prefix,
	})
	if err != nil {
		return nil, cleanup, err
	}
	if c, ok := src.(io.Closer); ok {
		closers = append(closers, c)
	}

	loc, err := cfg.LedgerLocation()
	if err != nil {
		return nil, cleanup, err
	}

	cpMgr, err := checkpoint.NewManager(checkpoint.Config{
		Enabled: cfg.Storage.CheckpointEnabled && !cfg.Import.DryRun,
		Dir:     cfg.Storage.CheckpointDir,
	})
	if err != nil {
		log.Printf("[main] checkpoints disabled: %v", err)
		cpMgr = nil
	}

	catalog, err := metadata.NewWriter(metadata.CatalogConfig{
		PostgresDSN: cfg.Catalog.PostgresDSN,
		Strict:      cfg.Catalog.Strict,
	})
	if err != nil {
		if cfg.Catalog.Strict {
			return nil, cleanup, err
		}
		log.Printf("[main] catalog disabled: %v", err)
		catalog = nil
	} else {
		closers = append(closers, catalog)
	}

	var mirror *storage.Mirror
	if cfg.Storage.MirrorURL != "" && !cfg.Import.DryRun {
		mirror, err = storage.OpenMirror(ctx, cfg.Storage.MirrorURL, cfg.Storage.MirrorPrefix)
		if err != nil {
			log.Printf("[main] mirror disabled: %v", err)
			mirror = nil
		} else {
			closers = append(closers, mirror)
		}
	}

	auditor, err := audit.NewEmitter(audit.Config{
		Enabled:  cfg.Audit.Enabled && !cfg.Import.DryRun,
		Dir:      cfg.Audit.Dir,
		Endpoint: cfg.Audit.Endpoint,
	})
	if err != nil {
		log.Printf("[main] audit disabled: %v", err)
		auditor = nil
	} else {
		closers = append(closers, auditor)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.Init("chess2lichess")
		go func() {
			log.Printf("[main] metrics listening on %s", cfg.Metrics.Address)
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Printf("[main] metrics server stopped: %v", err)
			}
		}()
	}

	summaryDir := ""
	if cfg.Storage.CheckpointEnabled {
		summaryDir = cfg.Storage.CheckpointDir
	}

	migrator := migrate.New(migrate.Config{
		Import: importer.Config{
			PacingDelay:       cfg.Import.PacingDelay,
			RateLimitCooldown: cfg.Import.RateLimitCooldown,
			RateLimitRetries:  cfg.Import.RateLimitRetries,
			Location:          loc,
			DryRun:            cfg.Import.DryRun,
			StrictCatalog:     cfg.Catalog.Strict,
		},
		SummaryDir:         summaryDir,
		ParquetCompression: cfg.Storage.ParquetCompression,
		SourceName:         cfg.Source.Mode,
	}, migrate.Deps{
		Source: src,
		Destination: destination.NewClient(destination.Config{
			BaseURL: cfg.Destination.BaseURL,
			Token:   cfg.Destination.Token,
			Timeout: cfg.Destination.Timeout,
		}),
		Filter:     filter.New(cfg.Import.Categories),
		Ledger:     ledger.NewCSVLedger(cfg.Storage.LedgerPath),
		Archive:    storage.NewArchive(cfg.Storage.ArchivePath),
		Checkpoint: cpMgr,
		Catalog:    catalog,
		Mirror:     mirror,
		Audit:      auditor,
		Metrics:    m,
	})
	return migrator, cleanup, nil
}
