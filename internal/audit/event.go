// Package audit emits a tamper-evident, hash-chained record of every import run.
package audit

import (
	"time"
)

const (
	EventVersion = "1.0"
	EventType    = "import_run"
)

// RunEvent is the audit record of one completed import run.
type RunEvent struct {
	Version   string    `json:"version"`
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`

	Run      RunInfo             `json:"run"`
	Files    map[string]FileInfo `json:"files"`
	Producer ProducerInfo        `json:"producer"`
	Chain    ChainInfo           `json:"chain"`
}

// RunInfo identifies the run being audited.
type RunInfo struct {
	RunID           string `json:"run_id"`
	Username        string `json:"username"`
	Scope           string `json:"scope"`
	Status          string `json:"status"`
	Fetched         int    `json:"fetched"`
	AlreadyImported int    `json:"already_imported"`
	Imported        int    `json:"imported"`
	LastGameID      string `json:"last_game_id,omitempty"`
}

// FileInfo is the state of a local store at the end of the run.
type FileInfo struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	ByteSize int64  `json:"byte_size"`
}

type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
}

// ChainInfo links an event to the previous event of the same user.
type ChainInfo struct {
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
}

// ChainKey returns the chain this event belongs to: one chain per player.
func (e *RunEvent) ChainKey() string {
	return "chesscom/" + e.Run.Username
}

// SetChainHashes links the event to prev and computes its own hash.
func (e *RunEvent) SetChainHashes(prev string) {
	e.Chain.PrevEventHash = prev
	e.Chain.EventHash = ComputeEventHash(e)
}
