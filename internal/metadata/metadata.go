// Package metadata records migration runs and imported games in an optional
// catalog and as JSON run summaries.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunRecord summarises one migration run.
type RunRecord struct {
	RunID           string    `json:"run_id"`
	Username        string    `json:"username"`
	Scope           string    `json:"scope"`
	Categories      []string  `json:"categories,omitempty"`
	Status          string    `json:"status"`
	Fetched         int       `json:"fetched"`
	AlreadyImported int       `json:"already_imported"`
	Imported        int       `json:"imported"`
	Retries         int       `json:"rate_limit_retries"`
	Error           string    `json:"error,omitempty"`
	ProducerVersion string    `json:"producer_version"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// GameRecord is one imported game.
type GameRecord struct {
	RunID       string
	Username    string
	GameID      string
	White       string
	Black       string
	TimeControl string
	PlayedAt    time.Time // UTC
	LichessURL  string
	ImportedAt  time.Time
}

// WriteJSON writes the run summary to path atomically.
func (r *RunRecord) WriteJSON(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, b, 0644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename run summary: %w", err)
	}
	return nil
}
