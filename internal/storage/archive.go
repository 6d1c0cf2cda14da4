// Package storage holds the local PGN archive and the object-store mirror of
// a migration's outputs.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chess2lichess/chess2lichess/internal/pgn"
)

// Archive is an append-only text file of imported games separated by
// pgn.Delimiter. The delimiter precedes every block except the first, so the
// file never ends with a trailing delimiter.
type Archive struct {
	path string
	mu   sync.Mutex
}

// NewArchive returns an archive at path. The file is created on first append.
func NewArchive(path string) *Archive {
	return &Archive{path: path}
}

// Path returns the archive file location.
func (a *Archive) Path() string {
	return a.path
}

// Append adds one game block and syncs the file.
func (a *Archive) Append(game string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create archive directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", a.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	block := pgn.Join([]string{game})
	if block == "" {
		return fmt.Errorf("append archive: empty game")
	}
	if info.Size() > 0 {
		block = pgn.Delimiter + block
	}
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return f.Sync()
}

// Bytes returns the raw archive contents. A missing archive is empty.
func (a *Archive) Bytes() ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive %s: %w", a.path, err)
	}
	return data, nil
}

// Games returns the archived blocks in append order.
func (a *Archive) Games() ([]string, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	return pgn.Split(string(data)), nil
}
