package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidMonth is returned for malformed YYYY/MM values and inverted ranges.
var ErrInvalidMonth = errors.New("invalid month")

// Month is a calendar month of a chess.com archive.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY/MM".
func ParseMonth(s string) (Month, error) {
	yy, mm, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || len(yy) != 4 || len(mm) != 2 {
		return Month{}, fmt.Errorf("%w: %q (want YYYY/MM)", ErrInvalidMonth, s)
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q: %v", ErrInvalidMonth, s, err)
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: %q: month out of range", ErrInvalidMonth, s)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// String formats the month as YYYY/MM, the path form used by chess.com.
func (m Month) String() string {
	return fmt.Sprintf("%04d/%02d", m.Year, int(m.Month))
}

// Compact formats the month as YYYYMM.
func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// MonthRange returns every month from start to end inclusive, oldest first.
func MonthRange(start, end Month) ([]Month, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range start %s is after end %s", ErrInvalidMonth, start, end)
	}
	var months []Month
	for m := start; !end.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months, nil
}

// ScopeKind identifies how a Scope selects months.
type ScopeKind int

const (
	ScopeCurrent ScopeKind = iota
	ScopeMonth
	ScopeRange
)

// Scope is the set of months to fetch.
type Scope struct {
	Kind  ScopeKind
	Start Month
	End   Month
}

// CurrentMonth selects the month containing the clock's current time.
func CurrentMonth() Scope { return Scope{Kind: ScopeCurrent} }

// SingleMonth selects exactly m.
func SingleMonth(m Month) Scope { return Scope{Kind: ScopeMonth, Start: m, End: m} }

// Range selects start through end inclusive.
func Range(start, end Month) Scope { return Scope{Kind: ScopeRange, Start: start, End: end} }

// ParseRange parses "YYYY/MM,YYYY/MM".
func ParseRange(s string) (Scope, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return Scope{}, fmt.Errorf("%w: %q (want YYYY/MM,YYYY/MM)", ErrInvalidMonth, s)
	}
	start, err := ParseMonth(a)
	if err != nil {
		return Scope{}, err
	}
	end, err := ParseMonth(b)
	if err != nil {
		return Scope{}, err
	}
	if end.Before(start) {
		return Scope{}, fmt.Errorf("%w: range start %s is after end %s", ErrInvalidMonth, start, end)
	}
	return Range(start, end), nil
}

// Months resolves the scope against now.
func (s Scope) Months(now time.Time) ([]Month, error) {
	switch s.Kind {
	case ScopeCurrent:
		return []Month{MonthOf(now)}, nil
	case ScopeMonth:
		return []Month{s.Start}, nil
	case ScopeRange:
		return MonthRange(s.Start, s.End)
	default:
		return nil, fmt.Errorf("unknown scope kind %d", s.Kind)
	}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeCurrent:
		return "current month"
	case ScopeMonth:
		return s.Start.String()
	default:
		return s.Start.String() + "-" + s.End.String()
	}
}
