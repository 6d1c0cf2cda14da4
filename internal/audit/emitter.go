package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Config configures audit emission.
type Config struct {
	Enabled  bool
	Dir      string
	Endpoint string // optional webhook receiving each event as JSON
	Timeout  time.Duration
}

// Emitter records run events.
type Emitter interface {
	Emit(ctx context.Context, evt *RunEvent) error
	Close() error
}

// NewEmitter creates an emitter based on configuration. Events are always
// written to Dir; Endpoint additionally receives them over HTTP.
func NewEmitter(cfg Config) (Emitter, error) {
	log := slog.With("component", "audit")
	if !cfg.Enabled {
		log.Debug("audit disabled, using no-op emitter")
		return noopEmitter{}, nil
	}

	chain, err := NewChainTracker(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("create chain tracker: %w", err)
	}

	e := &chainEmitter{
		dir:   cfg.Dir,
		chain: chain,
		log:   log,
	}
	if cfg.Endpoint != "" {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		e.endpoint = cfg.Endpoint
		e.client = &http.Client{Timeout: timeout}
		log.Info("audit events will be posted", "endpoint", cfg.Endpoint)
	}
	return e, nil
}

// chainEmitter links, hashes, backs up and optionally posts each event.
type chainEmitter struct {
	dir      string
	chain    *ChainTracker
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

func (e *chainEmitter) Emit(ctx context.Context, evt *RunEvent) error {
	chainKey := evt.ChainKey()

	prevHash, err := e.chain.GetHead(chainKey)
	if err != nil && !errors.Is(err, ErrNoChainHead) {
		return fmt.Errorf("get chain head: %w", err)
	}

	evt.Version = EventVersion
	evt.EventType = EventType
	evt.EventID = GenerateEventID()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.SetChainHashes(prevHash)

	e.log.Info("emitting audit event",
		"chain", chainKey,
		"position", e.chain.Len(chainKey)+1,
		"run_id", evt.Run.RunID,
		"prev_hash", prevHash,
		"event_hash", evt.Chain.EventHash,
	)

	// The local copy is written first; the webhook is best-effort on top.
	if err := e.save(evt); err != nil {
		return err
	}

	if e.endpoint != "" {
		if err := e.postWithRetry(ctx, evt); err != nil {
			return fmt.Errorf("audit emit failed: %w", err)
		}
	}

	if err := e.chain.Advance(chainKey, evt.Chain.EventHash); err != nil {
		e.log.Warn("failed to update chain head", "error", err)
	}
	return nil
}

// save writes evt to {dir}/{username}_{timestamp}_{run}.json.
func (e *chainEmitter) save(evt *RunEvent) error {
	filename := fmt.Sprintf("%s_%s_%s.json",
		evt.Run.Username,
		evt.Timestamp.UTC().Format("20060102T150405Z"),
		evt.Run.RunID,
	)
	path := filepath.Join(e.dir, filename)

	data, err := json.MarshalIndent(evt, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}

	e.log.Debug("audit event saved", "path", path)
	return nil
}

func (e *chainEmitter) postWithRetry(ctx context.Context, evt *RunEvent) error {
	var lastErr error
	retries := 3
	delay := time.Second

	for attempt := 1; attempt <= retries; attempt++ {
		err := e.post(ctx, evt)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < retries {
			e.log.Warn("audit post failed, retrying", "attempt", attempt, "retries", retries, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", retries, lastErr)
}

func (e *chainEmitter) post(ctx context.Context, evt *RunEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
}

func (e *chainEmitter) Close() error {
	return nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ *RunEvent) error { return nil }
func (noopEmitter) Close() error                              { return nil }
