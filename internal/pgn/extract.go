package pgn

import (
	"regexp"
	"strconv"
)

// gamePattern matches the chess.com export header. The tags must appear in this
// relative order; chess.com always emits them that way, so anything else is
// treated as a malformed block rather than searched for tag by tag.
var gamePattern = regexp.MustCompile(`(?s)` +
	`\[White "(?P<white>[^"]+)"\]` +
	`.*?\[Black "(?P<black>[^"]+)"\]` +
	`.*?\[UTCDate "(?P<date>\d{4}\.\d{2}\.\d{2})"\]` +
	`.*?\[UTCTime "(?P<time>\d{2}:\d{2}:\d{2})"\]` +
	`.*?\[WhiteElo "(?P<white_elo>\d+)"\]` +
	`.*?\[BlackElo "(?P<black_elo>\d+)"\]` +
	`.*?\[TimeControl "(?P<time_control>\d+(?:\+\d{1,2})?)"\]` +
	`.*?\[Termination "(?P<termination>(?:\S+\s+){0,10}\w+)"\]` +
	`.*?\[Link "[^"]*?(?P<game_id>\d+)"\]`)

var timeControlTag = regexp.MustCompile(`\[TimeControl "([^"]*)"\]`)

// Extract parses the header of a single PGN block.
func Extract(text string) (GameRecord, error) {
	m := gamePattern.FindStringSubmatch(text)
	if m == nil {
		return GameRecord{}, malformed("header", "required tags missing or out of order")
	}

	group := func(name string) string {
		return m[gamePattern.SubexpIndex(name)]
	}

	whiteElo, err := strconv.Atoi(group("white_elo"))
	if err != nil {
		return GameRecord{}, malformed("WhiteElo", err.Error())
	}
	blackElo, err := strconv.Atoi(group("black_elo"))
	if err != nil {
		return GameRecord{}, malformed("BlackElo", err.Error())
	}

	return GameRecord{
		GameID:      group("game_id"),
		White:       group("white"),
		Black:       group("black"),
		WhiteElo:    whiteElo,
		BlackElo:    blackElo,
		Date:        group("date"),
		Time:        group("time"),
		TimeControl: group("time_control"),
		Termination: group("termination"),
	}, nil
}

// TimeControl returns the raw TimeControl tag value of a block. Unlike Extract
// it accepts any value, e.g. daily games ("1/86400").
func TimeControl(text string) (string, error) {
	m := timeControlTag.FindStringSubmatch(text)
	if m == nil {
		return "", malformed("TimeControl", "tag missing")
	}
	return m[1], nil
}

// BaseSeconds returns the base of the block's TimeControl tag.
func BaseSeconds(text string) (string, error) {
	tc, err := TimeControl(text)
	if err != nil {
		return "", err
	}
	return baseSeconds(tc), nil
}
