// Package source fetches monthly PGN exports from chess.com.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransport is returned when a month cannot be fetched.
	ErrTransport = errors.New("fetch transport failure")

	ErrInvalidSourceMode = errors.New("invalid source mode")
)

// GameSource returns the raw multi-game PGN text of one player-month.
type GameSource interface {
	FetchMonth(ctx context.Context, username string, m Month) (string, error)
}

// Config selects and configures a GameSource.
type Config struct {
	Mode      string // "http" | "file" | "bucket"
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Dir       string
	BucketURL string
	Prefix    string
}

// NewGameSource constructs a game source based on the configured mode.
func NewGameSource(cfg Config) (GameSource, error) {
	switch cfg.Mode {
	case "http", "":
		return NewHTTPSource(cfg.BaseURL, cfg.UserAgent, cfg.Timeout), nil
	case "file":
		return NewLocalSource(cfg.Dir)
	case "bucket":
		return NewBucketSource(context.Background(), cfg.BucketURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceMode, cfg.Mode)
	}
}
