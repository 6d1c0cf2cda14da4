// Package destination submits games to the lichess import API.
package destination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrRateLimited is returned when lichess answers 429 Too Many Requests.
	ErrRateLimited = errors.New("lichess rate limit")

	// ErrTransport covers every other failed submission.
	ErrTransport = errors.New("lichess transport failure")
)

const DefaultBaseURL = "https://lichess.org"

// Importer submits one PGN to the destination platform.
type Importer interface {
	Import(ctx context.Context, pgn string) (*ImportResult, error)
}

// ImportResult describes a successful import.
type ImportResult struct {
	StatusCode int
	Location   string
}

// Config configures the lichess client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client posts games to {BaseURL}/api/import.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewClient creates a new lichess import client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(base, "/") + "/api/import",
		token:    cfg.Token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Import sends a single game. It never retries.
func (c *Client) Import(ctx context.Context, pgn string) (*ImportResult, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: LICHESS_TOKEN is not set", ErrTransport)
	}

	form := url.Values{}
	form.Set("pgn", pgn)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: http request: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return &ImportResult{
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: http %d", ErrRateLimited, resp.StatusCode)
	}
	return nil, fmt.Errorf("%w: http %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(respBody)))
}
