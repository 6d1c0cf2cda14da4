// Package checkpoint persists migration progress between runs.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")
)

// Checkpoint records the last game committed for a user. Remaining is the
// number of planned games not yet committed; a non-zero value left behind
// means the run was interrupted.
type Checkpoint struct {
	RunID      string    `json:"run_id"`
	Username   string    `json:"username"`
	Scope      string    `json:"scope,omitempty"`
	LastGameID string    `json:"last_game_id"`
	Imported   int       `json:"imported"`
	Remaining  int       `json:"remaining"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Interrupted reports whether the run that wrote cp stopped before finishing its plan.
func (cp *Checkpoint) Interrupted() bool {
	return cp != nil && cp.Remaining > 0
}

// Manager handles checkpoint persistence and retrieval.
type Manager interface {
	// Load reads the checkpoint for username.
	Load(ctx context.Context, username string) (*Checkpoint, error)

	// Save persists the checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error
}

// Config configures the checkpoint manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for checkpoint files
}

// NewManager creates a checkpoint manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{dir: cfg.Dir}, nil
}

// fileManager persists checkpoints to local files, one per user.
type fileManager struct {
	dir string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func (m *fileManager) checkpointPath(username string) string {
	filename := fmt.Sprintf("checkpoint_%s.json", unsafeChars.ReplaceAllString(username, "_"))
	return filepath.Join(m.dir, filename)
}

// Load reads the checkpoint from file.
func (m *fileManager) Load(ctx context.Context, username string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}

	return &cp, nil
}

// Save persists the checkpoint to file.
func (m *fileManager) Save(ctx context.Context, cp *Checkpoint) error {
	if cp.Username == "" {
		return fmt.Errorf("save checkpoint: empty username")
	}
	path := m.checkpointPath(cp.Username)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	return nil
}

// noopManager is a no-op checkpoint manager for when checkpointing is disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context, username string) (*Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

func (m *noopManager) Save(ctx context.Context, cp *Checkpoint) error {
	return nil
}
