package migrate

import (
	"context"
	"time"

	"github.com/chess2lichess/chess2lichess/internal/metrics"
	"github.com/chess2lichess/chess2lichess/internal/source"
)

// instrumentedSource records the duration of every month download.
type instrumentedSource struct {
	src     source.GameSource
	name    string
	metrics *metrics.Metrics
}

func (s *instrumentedSource) FetchMonth(ctx context.Context, username string, month source.Month) (string, error) {
	start := time.Now()
	text, err := s.src.FetchMonth(ctx, username, month)
	s.metrics.ObserveFetchDuration(s.name, time.Since(start).Seconds())
	return text, err
}
