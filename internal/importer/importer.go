// Package importer submits games to lichess one at a time and records every
// success in the ledger and the archive before moving on.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chess2lichess/chess2lichess/internal/checkpoint"
	"github.com/chess2lichess/chess2lichess/internal/destination"
	"github.com/chess2lichess/chess2lichess/internal/ledger"
	"github.com/chess2lichess/chess2lichess/internal/metadata"
	"github.com/chess2lichess/chess2lichess/internal/metrics"
	"github.com/chess2lichess/chess2lichess/internal/pgn"
)

// ErrAllGamesAlreadyImported is returned when every fetched game is already in the ledger.
var ErrAllGamesAlreadyImported = errors.New("all games already imported")

// Defaults applied by New to zero Config fields.
const (
	DefaultPacingDelay       = 7500 * time.Millisecond
	DefaultRateLimitCooldown = 60 * time.Second
	DefaultRateLimitRetries  = 1
)

// Archiver appends an imported game to the local archive.
type Archiver interface {
	Append(game string) error
}

// Config holds the run policy.
type Config struct {
	Username          string
	RunID             string
	Scope             string
	PacingDelay       time.Duration
	RateLimitCooldown time.Duration
	RateLimitRetries  int
	Location          *time.Location // ledger timestamps; nil means UTC
	DryRun            bool
	StrictCatalog     bool
}

// Deps are the collaborators of an Importer. Checkpoint, Catalog, Metrics,
// Sleep and Now are optional.
type Deps struct {
	Destination destination.Importer
	Ledger      ledger.Ledger
	Archive     Archiver
	Checkpoint  checkpoint.Manager
	Catalog     metadata.Writer
	Metrics     *metrics.Metrics
	Sleep       SleepFunc
	Now         func() time.Time
}

// Report summarises a run.
type Report struct {
	Fetched         int
	AlreadyImported int
	Duplicates      int
	Planned         int
	Imported        int
	Retries         int
	LastGameID      string
	States          map[string]State
	Warnings        []string
}

// Importer runs the pending -> submitting -> recorded|failed state machine.
type Importer struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

// New creates an Importer.
func New(cfg Config, deps Deps) *Importer {
	if cfg.PacingDelay == 0 {
		cfg.PacingDelay = DefaultPacingDelay
	}
	if cfg.RateLimitCooldown == 0 {
		cfg.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if cfg.RateLimitRetries == 0 {
		cfg.RateLimitRetries = DefaultRateLimitRetries
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
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
	return &Importer{
		cfg:  cfg,
		deps: deps,
		log:  slog.With("component", "importer", "run_id", cfg.RunID, "username", cfg.Username),
	}
}

type plannedGame struct {
	rec  pgn.GameRecord
	text string

	// ledger date and time in cfg.Location
	date, clock string
}

// Run imports every game in texts that is not yet in the ledger. Games are
// submitted in order; the first failure stops the run and everything recorded
// before it stays recorded.
func (im *Importer) Run(ctx context.Context, texts []string) (*Report, error) {
	report := &Report{
		Fetched: len(texts),
		States:  make(map[string]State),
	}

	if !im.cfg.DryRun {
		if err := im.deps.Ledger.EnsureCreated(); err != nil {
			return report, fmt.Errorf("create ledger: %w", err)
		}
	}

	plan, err := im.plan(texts, report)
	if err != nil {
		return report, err
	}
	im.deps.Metrics.AddSkipped(report.AlreadyImported)

	if len(plan) == 0 {
		im.log.Info("nothing to import", "fetched", report.Fetched, "already_imported", report.AlreadyImported)
		return report, ErrAllGamesAlreadyImported
	}

	im.log.Info("import plan",
		"fetched", report.Fetched,
		"already_imported", report.AlreadyImported,
		"duplicates", report.Duplicates,
		"to_import", len(plan),
		"pacing", im.cfg.PacingDelay,
		"dry_run", im.cfg.DryRun,
	)

	if im.cfg.DryRun {
		for i, g := range plan {
			im.log.Info("would import",
				"n", fmt.Sprintf("%d/%d", i+1, len(plan)),
				"game_id", g.rec.GameID,
				"white", g.rec.White,
				"black", g.rec.Black,
				"time_control", g.rec.TimeControl,
			)
		}
		return report, nil
	}

	for i, g := range plan {
		if i > 0 {
			if err := im.deps.Sleep(ctx, im.cfg.PacingDelay); err != nil {
				return report, err
			}
		}

		report.States[g.rec.GameID] = StateSubmitting
		res, err := im.submit(ctx, g, report)
		if err != nil {
			report.States[g.rec.GameID] = StateFailed
			im.deps.Metrics.IncFailed(failureReason(err))
			im.log.Error("import failed", "game_id", g.rec.GameID, "error", err)
			return report, fmt.Errorf("import game %s: %w", g.rec.GameID, err)
		}

		if err := im.commit(ctx, g, res, report, len(plan)-i-1); err != nil {
			report.States[g.rec.GameID] = StateFailed
			return report, err
		}
		report.States[g.rec.GameID] = StateRecorded

		im.log.Debug(fmt.Sprintf("Imported %d/%d", i+1, len(plan)), "game_id", g.rec.GameID)
	}

	im.log.Info("import complete",
		"imported", report.Imported,
		"retries", report.Retries,
		"last_game_id", report.LastGameID,
	)
	return report, nil
}

// plan parses every block and keeps the games not yet imported. Ledger
// timestamps are resolved here so a bad date fails the batch before anything
// is submitted.
func (im *Importer) plan(texts []string, report *Report) ([]plannedGame, error) {
	validation := ValidateBatch(texts)
	if !validation.Passed {
		return nil, validation.Err
	}
	for _, w := range validation.Warnings {
		im.log.Warn("batch validation", "warning", w)
	}
	report.Warnings = validation.Warnings
	report.Duplicates = len(texts) - len(validation.Unique)

	known, err := im.deps.Ledger.KnownIDs()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var plan []plannedGame
	for i, rec := range validation.Unique {
		if _, ok := known[rec.GameID]; ok {
			report.AlreadyImported++
			continue
		}
		date, clock, err := pgn.ToLocal(rec.Date, rec.Time, im.cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", rec.GameID, err)
		}
		report.States[rec.GameID] = StatePending
		plan = append(plan, plannedGame{rec: rec, text: validation.Texts[i], date: date, clock: clock})
	}
	report.Planned = len(plan)
	return plan, nil
}

// submit sends one game, retrying after a cooldown when the destination
// signals rate limiting, at most RateLimitRetries times.
func (im *Importer) submit(ctx context.Context, g plannedGame, report *Report) (*destination.ImportResult, error) {
	for attempt := 0; ; attempt++ {
		start := im.deps.Now()
		res, err := im.deps.Destination.Import(ctx, g.text)
		im.deps.Metrics.ObserveSubmitDuration(im.deps.Now().Sub(start).Seconds())
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, destination.ErrRateLimited) || attempt >= im.cfg.RateLimitRetries {
			return nil, err
		}

		im.log.Warn("rate limited, cooling down",
			"game_id", g.rec.GameID,
			"cooldown", im.cfg.RateLimitCooldown,
			"attempt", attempt+1,
		)
		report.Retries++
		im.deps.Metrics.IncRateLimitRetries()
		if err := im.deps.Sleep(ctx, im.cfg.RateLimitCooldown); err != nil {
			return nil, err
		}
	}
}

// commit records a submitted game. Ledger and archive failures are fatal;
// checkpoint and catalog failures are logged unless the catalog is strict.
func (im *Importer) commit(ctx context.Context, g plannedGame, res *destination.ImportResult, report *Report, remaining int) error {
	entry := ledger.Entry{
		GameID:      g.rec.GameID,
		Date:        g.date,
		Time:        g.clock,
		White:       g.rec.White,
		WhiteElo:    g.rec.WhiteElo,
		Black:       g.rec.Black,
		BlackElo:    g.rec.BlackElo,
		TimeControl: g.rec.TimeControl,
		Termination: g.rec.Termination,
	}
	if err := im.deps.Ledger.Record(entry); err != nil {
		return fmt.Errorf("record game %s in ledger: %w", g.rec.GameID, err)
	}
	if err := im.deps.Archive.Append(g.text); err != nil {
		return fmt.Errorf("archive game %s: %w", g.rec.GameID, err)
	}

	now := im.deps.Now().UTC()
	report.Imported++
	report.LastGameID = g.rec.GameID
	im.deps.Metrics.IncImported(float64(now.Unix()))

	cp := &checkpoint.Checkpoint{
		RunID:      im.cfg.RunID,
		Username:   im.cfg.Username,
		Scope:      im.cfg.Scope,
		LastGameID: g.rec.GameID,
		Imported:   report.Imported,
		Remaining:  remaining,
		UpdatedAt:  now,
	}
	if err := im.deps.Checkpoint.Save(ctx, cp); err != nil {
		im.log.Warn("failed to save checkpoint", "game_id", g.rec.GameID, "error", err)
		im.deps.Metrics.IncBookkeepingErrors("checkpoint")
	}

	played, _ := g.rec.PlayedAt()
	var location string
	if res != nil {
		location = res.Location
	}
	err := im.deps.Catalog.RecordGame(ctx, metadata.GameRecord{
		RunID:       im.cfg.RunID,
		Username:    im.cfg.Username,
		GameID:      g.rec.GameID,
		White:       g.rec.White,
		Black:       g.rec.Black,
		TimeControl: g.rec.TimeControl,
		PlayedAt:    played,
		LichessURL:  location,
		ImportedAt:  now,
	})
	if err != nil {
		im.deps.Metrics.IncBookkeepingErrors("catalog")
		if im.cfg.StrictCatalog {
			return fmt.Errorf("catalog game %s: %w", g.rec.GameID, err)
		}
		im.log.Warn("failed to record game in catalog", "game_id", g.rec.GameID, "error", err)
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, destination.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
