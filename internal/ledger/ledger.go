// Package ledger maintains the append-only CSV record of games already
// imported to lichess.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

var (
	// ErrDuplicateGame is returned when recording a game id that is already present.
	ErrDuplicateGame = errors.New("game already recorded in ledger")

	// ErrBadHeader is returned when an existing ledger does not start with Header.
	ErrBadHeader = errors.New("ledger header mismatch")
)

// Header is the fixed column layout of the ledger file.
var Header = []string{
	"game_id",
	"game_date",
	"game_time",
	"white",
	"white_elo",
	"black",
	"black_elo",
	"time_control",
	"termination",
}

// Entry is one ledger row. Date is YYYY/MM/DD and Time is HH:MM:SS, either in
// the configured timezone or UTC.
type Entry struct {
	GameID      string
	Date        string
	Time        string
	White       string
	WhiteElo    int
	Black       string
	BlackElo    int
	TimeControl string
	Termination string
}

func (e Entry) row() []string {
	return []string{
		e.GameID,
		e.Date,
		e.Time,
		e.White,
		strconv.Itoa(e.WhiteElo),
		e.Black,
		strconv.Itoa(e.BlackElo),
		e.TimeControl,
		e.Termination,
	}
}

func parseRow(row []string) (Entry, error) {
	if len(row) != len(Header) {
		return Entry{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	whiteElo, err := strconv.Atoi(row[4])
	if err != nil {
		return Entry{}, fmt.Errorf("white_elo %q: %w", row[4], err)
	}
	blackElo, err := strconv.Atoi(row[6])
	if err != nil {
		return Entry{}, fmt.Errorf("black_elo %q: %w", row[6], err)
	}
	return Entry{
		GameID:      row[0],
		Date:        row[1],
		Time:        row[2],
		White:       row[3],
		WhiteElo:    whiteElo,
		Black:       row[5],
		BlackElo:    blackElo,
		TimeControl: row[7],
		Termination: row[8],
	}, nil
}

// Ledger is the dedup store used by the importer.
type Ledger interface {
	EnsureCreated() error
	KnownIDs() (map[string]struct{}, error)
	Record(e Entry) error
}

// CSVLedger stores entries in a CSV file. It assumes a single writer.
type CSVLedger struct {
	path string

	mu    sync.Mutex
	known map[string]struct{}
}

// NewCSVLedger returns a ledger backed by the file at path.
func NewCSVLedger(path string) *CSVLedger {
	return &CSVLedger{path: path}
}

// Path returns the ledger file location.
func (l *CSVLedger) Path() string {
	return l.path
}

// EnsureCreated creates the ledger with its header row if it does not exist.
func (l *CSVLedger) EnsureCreated() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat ledger %s: %w", l.path, err)
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create ledger directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create ledger %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger header: %w", err)
	}
	return f.Sync()
}

// KnownIDs returns every game id in the ledger. A missing file yields an empty set.
func (l *CSVLedger) KnownIDs() (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.loadIDs()
	if err != nil {
		return nil, err
	}
	l.known = ids

	out := make(map[string]struct{}, len(ids))
	for id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Entries reads every row in file order.
func (l *CSVLedger) Entries() ([]Entry, error) {
	var entries []Entry
	err := l.scan(func(row []string) error {
		e, err := parseRow(row)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Record appends e and syncs the file to disk.
func (l *CSVLedger) Record(e Entry) error {
	if e.GameID == "" {
		return fmt.Errorf("record ledger entry: empty game id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.known == nil {
		ids, err := l.loadIDs()
		if err != nil {
			return err
		}
		l.known = ids
	}
	if _, ok := l.known[e.GameID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateGame, e.GameID)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(e.row()); err != nil {
		return fmt.Errorf("write ledger row %s: %w", e.GameID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger row %s: %w", e.GameID, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.known[e.GameID] = struct{}{}
	return nil
}

func (l *CSVLedger) loadIDs() (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := l.scan(func(row []string) error {
		if len(row) == 0 || row[0] == "" {
			return nil
		}
		ids[row[0]] = struct{}{}
		return nil
	})
	return ids, err
}

// scan calls fn for every data row after validating the header.
func (l *CSVLedger) scan(fn func(row []string) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read ledger header: %w", err)
	}
	if !sameHeader(header) {
		return fmt.Errorf("%w: %s", ErrBadHeader, l.path)
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read ledger line %d: %w", line, err)
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("ledger line %d: %w", line, err)
		}
	}
}

func sameHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i, col := range Header {
		if row[i] != col {
			return false
		}
	}
	return true
}
