package pgn

import "strings"

// Delimiter separates games inside a chess.com monthly export, months joined
// by the fetcher, and games in the local archive.
const Delimiter = "\n\n\n"

// Join concatenates blobs with Delimiter. Surrounding newlines are trimmed from
// every blob and blank blobs are skipped, so the result never carries a
// trailing delimiter.
func Join(blobs []string) string {
	parts := make([]string, 0, len(blobs))
	for _, b := range blobs {
		b = strings.Trim(b, "\r\n")
		if strings.TrimSpace(b) == "" {
			continue
		}
		parts = append(parts, b)
	}
	return strings.Join(parts, Delimiter)
}

// Split breaks a multi-game text into blocks on Delimiter, preserving order.
// Blank blocks are dropped.
func Split(text string) []string {
	text = strings.TrimSuffix(strings.Trim(text, "\r\n"), Delimiter)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := strings.Split(text, Delimiter)
	games := make([]string, 0, len(raw))
	for _, g := range raw {
		g = strings.Trim(g, "\r\n")
		if strings.TrimSpace(g) == "" {
			continue
		}
		games = append(games, g)
	}
	return games
}
