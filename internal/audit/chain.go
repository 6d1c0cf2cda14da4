package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoChainHead indicates no previous event exists for this chain.
	ErrNoChainHead = errors.New("no chain head found")
)

// ComputeEventHash hashes the canonical JSON of evt with event_hash blanked.
func ComputeEventHash(evt *RunEvent) string {
	evtCopy := *evt
	evtCopy.Chain.EventHash = ""

	canonical, err := json.Marshal(evtCopy)
	if err != nil {
		return ""
	}

	hash := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// VerifyChain checks that events, oldest first, form an unbroken chain.
func VerifyChain(events []RunEvent) error {
	prev := ""
	for i := range events {
		evt := &events[i]
		if evt.Chain.PrevEventHash != prev {
			return fmt.Errorf("event %s: prev hash %q, want %q", evt.EventID, evt.Chain.PrevEventHash, prev)
		}
		if got := ComputeEventHash(evt); got != evt.Chain.EventHash {
			return fmt.Errorf("event %s: hash mismatch", evt.EventID)
		}
		prev = evt.Chain.EventHash
	}
	return nil
}

// chainHead is the persisted tip of one chain.
type chainHead struct {
	Hash      string    `json:"hash"`
	Events    int       `json:"events"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChainTracker keeps the head of every chain in a JSON file.
type ChainTracker struct {
	mu    sync.RWMutex
	heads map[string]chainHead
	path  string
}

// NewChainTracker loads or creates the chain head file in dir.
func NewChainTracker(dir string) (*ChainTracker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	ct := &ChainTracker{
		heads: make(map[string]chainHead),
		path:  filepath.Join(dir, "chain-heads.json"),
	}

	data, err := os.ReadFile(ct.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read chain heads: %w", err)
	default:
		if err := json.Unmarshal(data, &ct.heads); err != nil {
			return nil, fmt.Errorf("parse chain heads %s: %w", ct.path, err)
		}
	}
	return ct, nil
}

// GetHead returns the last event hash of a chain.
func (ct *ChainTracker) GetHead(chainKey string) (string, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	head, ok := ct.heads[chainKey]
	if !ok || head.Hash == "" {
		return "", ErrNoChainHead
	}
	return head.Hash, nil
}

// Len returns the number of events emitted on a chain.
func (ct *ChainTracker) Len(chainKey string) int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.heads[chainKey].Events
}

// Advance moves the head of chainKey to eventHash and persists all heads.
func (ct *ChainTracker) Advance(chainKey, eventHash string) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	head := ct.heads[chainKey]
	head.Hash = eventHash
	head.Events++
	head.UpdatedAt = time.Now().UTC()
	ct.heads[chainKey] = head

	data, err := json.MarshalIndent(ct.heads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chain heads: %w", err)
	}
	tmp := ct.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write chain heads: %w", err)
	}
	return os.Rename(tmp, ct.path)
}

// GenerateEventID creates a unique event ID.
func GenerateEventID() string {
	return "audit_evt_" + uuid.New().String()
}
