package metadata

import (
	"context"
)

// CatalogConfig configures the optional import catalog.
type CatalogConfig struct {
	PostgresDSN string
	Strict      bool // catalog failures abort the run instead of being logged
}

// Writer records migration runs and imported games.
type Writer interface {
	StartRun(ctx context.Context, run RunRecord) error
	RecordGame(ctx context.Context, game GameRecord) error
	FinishRun(ctx context.Context, run RunRecord) error
	Close() error
}

// NewWriter returns a PostgreSQL writer when a DSN is configured and a no-op
// writer otherwise.
func NewWriter(cfg CatalogConfig) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return noopWriter{}, nil
	}
	return NewPostgresWriter(cfg)
}

type noopWriter struct{}

func (noopWriter) StartRun(_ context.Context, _ RunRecord) error    { return nil }
func (noopWriter) RecordGame(_ context.Context, _ GameRecord) error { return nil }
func (noopWriter) FinishRun(_ context.Context, _ RunRecord) error   { return nil }
func (noopWriter) Close() error                                     { return nil }
