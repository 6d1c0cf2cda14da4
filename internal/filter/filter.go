// Package filter selects games by time-control category.
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chess2lichess/chess2lichess/internal/pgn"
)

var (
	// ErrUnknownCategory is returned for a category label missing from the table.
	ErrUnknownCategory = errors.New("unknown game category")

	// ErrNoGamesMatched is returned when no game passes the filter.
	ErrNoGamesMatched = errors.New("no games matched the filter")
)

// DefaultCategories maps category labels to base seconds.
func DefaultCategories() map[string]string {
	return map[string]string{
		"rapid":  "600",
		"blitz":  "180",
		"bullet": "60",
	}
}

// Filter keeps games whose base time control belongs to requested categories.
type Filter struct {
	categories map[string]string
}

// New creates a Filter over the given label -> base seconds table. A nil or
// empty table falls back to DefaultCategories.
func New(categories map[string]string) *Filter {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	table := make(map[string]string, len(categories))
	for label, secs := range categories {
		table[strings.ToLower(label)] = secs
	}
	return &Filter{categories: table}
}

// Validate checks that every label is known.
func (f *Filter) Validate(labels []string) error {
	_, err := f.durations(labels)
	return err
}

// Labels returns the known category labels, sorted.
func (f *Filter) Labels() []string {
	out := make([]string, 0, len(f.categories))
	for label := range f.categories {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Apply returns the games matching any of labels, in input order.
func (f *Filter) Apply(games []string, labels []string) ([]string, error) {
	durations, err := f.durations(labels)
	if err != nil {
		return nil, err
	}

	var kept []string
	for i, game := range games {
		base, err := pgn.BaseSeconds(game)
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", i, err)
		}
		if _, ok := durations[base]; ok {
			kept = append(kept, game)
		}
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrNoGamesMatched, strings.Join(labels, ", "))
	}
	return kept, nil
}

func (f *Filter) durations(labels []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		secs, ok := f.categories[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownCategory, label, strings.Join(f.Labels(), ", "))
		}
		out[secs] = struct{}{}
	}
	return out, nil
}
