package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func entry(id string) Entry {
	return Entry{
		GameID:      id,
		Date:        "2024/03/01",
		Time:        "18:30:00",
		White:       "magnus_fan",
		WhiteElo:    1523,
		Black:       "hikaru_fan",
		BlackElo:    1498,
		TimeControl: "180+2",
		Termination: "magnus_fan won by resignation",
	}
}

func TestEnsureCreatedWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "ledger.csv")
	l := NewCSVLedger(path)

	if err := l.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated failed: %v", err)
	}
	if err := l.Record(entry("1")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.EnsureCreated(); err != nil {
		t.Fatalf("second EnsureCreated failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), data)
	}
	if lines[0] != strings.Join(Header, ",") {
		t.Errorf("unexpected header %q", lines[0])
	}
}

func TestKnownIDsMissingFile(t *testing.T) {
	l := NewCSVLedger(filepath.Join(t.TempDir(), "absent.csv"))
	ids, err := l.KnownIDs()
	if err != nil {
		t.Fatalf("KnownIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %d", len(ids))
	}
}

func TestRecordThenKnownIDs(t *testing.T) {
	l := NewCSVLedger(filepath.Join(t.TempDir(), "ledger.csv"))
	if err := l.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated failed: %v", err)
	}

	want := []string{"101", "102", "103"}
	for _, id := range want {
		if err := l.Record(entry(id)); err != nil {
			t.Fatalf("Record(%s) failed: %v", id, err)
		}
	}

	// A fresh handle sees the same ids.
	ids, err := NewCSVLedger(l.Path()).KnownIDs()
	if err != nil {
		t.Fatalf("KnownIDs failed: %v", err)
	}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for _, id := range want {
		if _, ok := ids[id]; !ok {
			t.Errorf("missing id %s", id)
		}
	}
}

func TestRecordRejectsDuplicate(t *testing.T) {
	l := NewCSVLedger(filepath.Join(t.TempDir(), "ledger.csv"))
	if err := l.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated failed: %v", err)
	}
	if err := l.Record(entry("7")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	err := NewCSVLedger(l.Path()).Record(entry("7"))
	if !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("expected ErrDuplicateGame, got %v", err)
	}
}

func TestEntriesRoundTrip(t *testing.T) {
	l := NewCSVLedger(filepath.Join(t.TempDir(), "ledger.csv"))
	if err := l.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated failed: %v", err)
	}

	e := entry("55")
	e.Termination = `Game drawn by "agreement", eventually`
	if err := l.Record(e); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := l.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0] != e {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte("id,date\n1,2024/01/01\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewCSVLedger(path).KnownIDs()
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
}
