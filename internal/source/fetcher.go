package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chess2lichess/chess2lichess/internal/pgn"
)

// Fetcher collects the games of every month in a Scope.
type Fetcher struct {
	src    GameSource
	now    func() time.Time
	logger *slog.Logger
}

// NewFetcher creates a fetcher over src. A nil clock means time.Now.
func NewFetcher(src GameSource, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		src:    src,
		now:    now,
		logger: slog.With("component", "fetcher"),
	}
}

// Fetch downloads every month in scope, oldest first, and returns the
// individual PGN blocks in order. Any month failure aborts the whole scope.
func (f *Fetcher) Fetch(ctx context.Context, username string, scope Scope) ([]string, error) {
	months, err := scope.Months(f.now())
	if err != nil {
		return nil, err
	}

	blobs := make([]string, 0, len(months))
	for _, m := range months {
		start := time.Now()
		text, err := f.src.FetchMonth(ctx, username, m)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s: %w", username, m, err)
		}
		f.logger.Debug("fetched month",
			"username", username,
			"month", m.String(),
			"bytes", len(text),
			"duration", time.Since(start),
		)
		blobs = append(blobs, text)
	}

	games := pgn.Split(pgn.Join(blobs))
	f.logger.Info("fetched games",
		"username", username,
		"scope", scope.String(),
		"months", len(months),
		"games", len(games),
	)
	return games, nil
}
