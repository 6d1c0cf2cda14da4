package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://api.chess.com/pub"
	DefaultUserAgent = "chess2lichess/1.0"
)

// HTTPSource downloads monthly exports from the chess.com public API.
type HTTPSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPSource creates a new chess.com API source.
func NewHTTPSource(baseURL, userAgent string, timeout time.Duration) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// URL returns the export endpoint for a player-month.
func (s *HTTPSource) URL(username string, m Month) string {
	return fmt.Sprintf("%s/player/%s/games/%s/pgn", s.baseURL, url.PathEscape(username), m)
}

// FetchMonth implements GameSource.
func (s *HTTPSource) FetchMonth(ctx context.Context, username string, m Month) (string, error) {
	endpoint := s.URL(username, m)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: GET %s: %v", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrTransport, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: GET %s: http %d: %s", ErrTransport, endpoint, resp.StatusCode, snippet(body))
	}

	return string(body), nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
