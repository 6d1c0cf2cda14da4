package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSource reads previously downloaded monthly exports from a directory.
type LocalSource struct {
	basePath string
}

// NewLocalSource creates a new local filesystem source.
func NewLocalSource(basePath string) (*LocalSource, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid local path %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local path %s is not a directory", basePath)
	}
	return &LocalSource{basePath: basePath}, nil
}

// FileName is the download name used for a player-month export.
func FileName(username string, m Month) string {
	return fmt.Sprintf("ChessCom_%s_%s.pgn", username, m.Compact())
}

// FetchMonth implements GameSource. A missing file is an empty month.
func (s *LocalSource) FetchMonth(ctx context.Context, username string, m Month) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.basePath, FileName(username, m))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read %s: %v", ErrTransport, path, err)
	}
	return string(data), nil
}
