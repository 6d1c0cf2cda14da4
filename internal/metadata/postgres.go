package metadata

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool   *pgxpool.Pool
	cfg    CatalogConfig
	logger *slog.Logger
}

// NewPostgresWriter creates a new PostgreSQL catalog writer.
func NewPostgresWriter(cfg CatalogConfig) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	// A single sequential importer never needs more than a couple of connections.
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		pool:   pool,
		cfg:    cfg,
		logger: slog.With("component", "catalog"),
	}

	if err := w.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.logger.Info("connected to PostgreSQL catalog")
	return w, nil
}

func (w *PostgresWriter) initSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// StartRun inserts a run row in the running state.
func (w *PostgresWriter) StartRun(ctx context.Context, run RunRecord) error {
	query := `
		INSERT INTO import_runs (run_id, username, scope, categories, status, producer_version, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`
	categories := run.Categories
	if categories == nil {
		categories = []string{}
	}
	_, err := w.pool.Exec(ctx, query,
		run.RunID,
		run.Username,
		run.Scope,
		categories,
		RunStatusRunning,
		run.ProducerVersion,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordGame writes one imported game.
func (w *PostgresWriter) RecordGame(ctx context.Context, game GameRecord) error {
	query := `
		INSERT INTO imported_games (game_id, run_id, username, white, black, time_control, played_at, lichess_url, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO NOTHING
	`
	var url *string
	if game.LichessURL != "" {
		url = &game.LichessURL
	}
	_, err := w.pool.Exec(ctx, query,
		game.GameID,
		game.RunID,
		game.Username,
		game.White,
		game.Black,
		game.TimeControl,
		game.PlayedAt,
		url,
		game.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("record game %s: %w", game.GameID, err)
	}
	w.logger.Debug("recorded game", "game_id", game.GameID, "run_id", game.RunID)
	return nil
}

// FinishRun stores the final counters and status of a run.
func (w *PostgresWriter) FinishRun(ctx context.Context, run RunRecord) error {
	query := `
		UPDATE import_runs SET
			status = $2,
			fetched = $3,
			already_imported = $4,
			imported = $5,
			rate_limit_retries = $6,
			error_message = $7,
			finished_at = $8
		WHERE run_id = $1
	`
	var errMsg *string
	if run.Error != "" {
		errMsg = &run.Error
	}
	_, err := w.pool.Exec(ctx, query,
		run.RunID,
		run.Status,
		run.Fetched,
		run.AlreadyImported,
		run.Imported,
		run.Retries,
		errMsg,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run for username, or nil when there is none.
func (w *PostgresWriter) LastRun(ctx context.Context, username string) (*RunRecord, error) {
	query := `
		SELECT run_id::text, username, scope, status, fetched, already_imported, imported,
		       rate_limit_retries, COALESCE(error_message, ''), producer_version, started_at
		FROM import_runs
		WHERE username = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	var run RunRecord
	err := w.pool.QueryRow(ctx, query, username).Scan(
		&run.RunID, &run.Username, &run.Scope, &run.Status, &run.Fetched,
		&run.AlreadyImported, &run.Imported, &run.Retries, &run.Error,
		&run.ProducerVersion, &run.StartedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get last run: %w", err)
	}
	return &run, nil
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}
