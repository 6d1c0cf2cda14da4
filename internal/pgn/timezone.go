package pgn

import (
	"time"
)

const (
	utcLayout       = "2006.01.02 15:04:05"
	localDateLayout = "2006/01/02"
	localTimeLayout = "15:04:05"
)

// ToLocal converts a UTC date (YYYY.MM.DD) and time (HH:MM:SS) into the given
// location, returning YYYY/MM/DD and HH:MM:SS. A nil location means UTC.
func ToLocal(date, clock string, loc *time.Location) (string, string, error) {
	t, err := time.ParseInLocation(utcLayout, date+" "+clock, time.UTC)
	if err != nil {
		return "", "", malformed("UTCDate/UTCTime", err.Error())
	}
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return t.Format(localDateLayout), t.Format(localTimeLayout), nil
}

// PlayedAt returns the UTC start time of the game.
func (r GameRecord) PlayedAt() (time.Time, error) {
	t, err := time.ParseInLocation(utcLayout, r.Date+" "+r.Time, time.UTC)
	if err != nil {
		return time.Time{}, malformed("UTCDate/UTCTime", err.Error())
	}
	return t, nil
}
