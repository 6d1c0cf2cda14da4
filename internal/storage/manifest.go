package storage

import (
	"encoding/json"
	"time"
)

// Manifest describes one published mirror snapshot.
type Manifest struct {
	Run       RunInfo             `json:"run"`
	Files     map[string]FileInfo `json:"files"`
	Producer  ProducerInfo        `json:"producer"`
	CreatedAt time.Time           `json:"created_at"`
}

// RunInfo identifies the migration run that produced the snapshot.
type RunInfo struct {
	RunID    string `json:"run_id"`
	Username string `json:"username"`
	Imported int    `json:"imported"`
	Games    int    `json:"games_total"`
}

// FileInfo describes a single object in the snapshot.
type FileInfo struct {
	Key         string `json:"key"`
	Checksum    string `json:"checksum"`
	ByteSize    int64  `json:"byte_size"`
	Compression string `json:"compression,omitempty"`
}

// ProducerInfo describes the software that produced the snapshot.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}
