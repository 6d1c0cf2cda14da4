// Package migrate orchestrates a migration run: fetch, filter, dedup, import,
// then the post-run bookkeeping.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chess2lichess/chess2lichess/internal/audit"
	"github.com/chess2lichess/chess2lichess/internal/checkpoint"
	"github.com/chess2lichess/chess2lichess/internal/destination"
	"github.com/chess2lichess/chess2lichess/internal/filter"
	"github.com/chess2lichess/chess2lichess/internal/importer"
	"github.com/chess2lichess/chess2lichess/internal/ledger"
	"github.com/chess2lichess/chess2lichess/internal/logging"
	"github.com/chess2lichess/chess2lichess/internal/metadata"
	"github.com/chess2lichess/chess2lichess/internal/metrics"
	"github.com/chess2lichess/chess2lichess/internal/source"
	"github.com/chess2lichess/chess2lichess/internal/storage"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Config holds the run policy shared by every migration.
type Config struct {
	Import             importer.Config // Username and RunID are set per run
	SummaryDir         string          // run summaries; empty disables them
	ParquetCompression string
	SourceName         string // metrics label for the game source
}

// Deps are the long-lived collaborators of a Migrator. Only Source,
// Destination, Ledger and Archive are required.
type Deps struct {
	Source      source.GameSource
	Destination destination.Importer
	Filter      *filter.Filter
	Ledger      *ledger.CSVLedger
	Archive     *storage.Archive
	Checkpoint  checkpoint.Manager
	Catalog     metadata.Writer
	Mirror      *storage.Mirror
	Audit       audit.Emitter
	Metrics     *metrics.Metrics
	Sleep       importer.SleepFunc
	Now         func() time.Time
}

// Request selects what to migrate.
type Request struct {
	Username string
	Scope    source.Scope
	Labels   []string // category filter; empty imports every game
}

// Result describes a finished run.
type Result struct {
	RunID   string
	Fetched int
	Matched int
	Report  *importer.Report
	Mirror  *storage.PublishResult
}

// Migrator runs migrations.
type Migrator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

// New creates a Migrator.
func New(cfg Config, deps Deps) *Migrator {
	if deps.Filter == nil {
		deps.Filter = filter.New(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Catalog == nil {
		deps.Catalog, _ = metadata.NewWriter(metadata.CatalogConfig{})
	}
	if deps.Checkpoint == nil {
		deps.Checkpoint, _ = checkpoint.NewManager(checkpoint.Config{})
	}
	if deps.Audit == nil {
		deps.Audit, _ = audit.NewEmitter(audit.Config{})
	}
	if cfg.SourceName == "" {
		cfg.SourceName = "http"
	}
	return &Migrator{
		cfg:  cfg,
		deps: deps,
		log:  slog.With("component", "migrate"),
	}
}

// Run migrates the games of req.Username in req.Scope. The returned error is
// one of the sentinel errors of the filter, importer, source and destination
// packages, wrapped with context.
func (m *Migrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Username == "" {
		return nil, errors.New("migrate: empty username")
	}
	// Unknown categories are a usage error and must not cost a download.
	if len(req.Labels) > 0 {
		if err := m.deps.Filter.Validate(req.Labels); err != nil {
			return nil, err
		}
	}

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	log := m.log.With("run_id", runID, "username", req.Username)
	result := &Result{RunID: runID}

	run := metadata.RunRecord{
		RunID:           runID,
		Username:        req.Username,
		Scope:           req.Scope.String(),
		Categories:      req.Labels,
		Status:          metadata.RunStatusRunning,
		ProducerVersion: Version,
		StartedAt:       m.deps.Now().UTC(),
	}
	if !m.cfg.Import.DryRun {
		if err := m.deps.Catalog.StartRun(ctx, run); err != nil {
			if m.cfg.Import.StrictCatalog {
				return result, fmt.Errorf("catalog start run: %w", err)
			}
			log.Warn("failed to record run start in catalog", "error", err)
			m.deps.Metrics.IncBookkeepingErrors("catalog")
		}
	}

	log.Info("starting migration", "scope", run.Scope, "categories", req.Labels, "dry_run", m.cfg.Import.DryRun)
	m.reportPreviousRun(ctx, log, req.Username)

	err := m.run(ctx, req, runID, result)
	m.finish(ctx, req, &run, result, err)
	return result, err
}

func (m *Migrator) run(ctx context.Context, req Request, runID string, result *Result) error {
	fetcher := source.NewFetcher(&instrumentedSource{
		src:     m.deps.Source,
		name:    m.cfg.SourceName,
		metrics: m.deps.Metrics,
	}, m.deps.Now)

	games, err := fetcher.Fetch(ctx, req.Username, req.Scope)
	if err != nil {
		return err
	}
	result.Fetched = len(games)
	result.Matched = len(games)
	m.deps.Metrics.AddFetched(len(games))

	if len(req.Labels) > 0 {
		matched, err := m.deps.Filter.Apply(games, req.Labels)
		if err != nil {
			return err
		}
		m.deps.Metrics.AddFiltered(len(games) - len(matched))
		result.Matched = len(matched)
		games = matched
	}

	icfg := m.cfg.Import
	icfg.Username = req.Username
	icfg.RunID = runID
	icfg.Scope = req.Scope.String()

	imp := importer.New(icfg, importer.Deps{
		Destination: m.deps.Destination,
		Ledger:      m.deps.Ledger,
		Archive:     m.deps.Archive,
		Checkpoint:  m.deps.Checkpoint,
		Catalog:     m.deps.Catalog,
		Metrics:     m.deps.Metrics,
		Sleep:       m.deps.Sleep,
		Now:         m.deps.Now,
	})

	report, err := imp.Run(ctx, games)
	result.Report = report
	return err
}

// reportPreviousRun logs how the last run for username ended. The ledger is
// the source of truth for what to skip, so this only informs the operator.
func (m *Migrator) reportPreviousRun(ctx context.Context, log *slog.Logger, username string) {
	cp, err := m.deps.Checkpoint.Load(ctx, username)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
			log.Warn("failed to load checkpoint", "error", err)
		}
		return
	}
	if cp.Interrupted() {
		log.Info("previous run was interrupted, its remaining games will be retried",
			"previous_run_id", cp.RunID,
			"scope", cp.Scope,
			"last_game_id", cp.LastGameID,
			"remaining", cp.Remaining,
		)
		return
	}
	log.Debug("previous run completed", "previous_run_id", cp.RunID, "imported", cp.Imported, "at", cp.UpdatedAt)
}
