// Package pgn extracts the fixed set of header tags chess2lichess needs from a
// single game's PGN text. It is not a PGN parser: moves are never read and
// only the tags listed on GameRecord are recognised.
package pgn

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is returned when a PGN block lacks a required tag or a
// tag value cannot be parsed.
var ErrMalformedRecord = errors.New("malformed pgn record")

// GameRecord holds the tags extracted from one PGN block.
type GameRecord struct {
	GameID      string // numeric id taken from the Link tag
	White       string
	Black       string
	WhiteElo    int
	BlackElo    int
	Date        string // UTC, YYYY.MM.DD
	Time        string // UTC, HH:MM:SS
	TimeControl string // "600" or "180+2"
	Termination string
}

// BaseSeconds returns the part of the time control before any increment.
func (r GameRecord) BaseSeconds() string {
	return baseSeconds(r.TimeControl)
}

func baseSeconds(tc string) string {
	base, _, _ := strings.Cut(tc, "+")
	return base
}

func malformed(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedRecord, field, reason)
}
