// Package export converts the import ledger into columnar snapshots.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/chess2lichess/chess2lichess/internal/ledger"
)

// SchemaVersion is bumped on breaking changes to GameRow.
const SchemaVersion = "1.0.0"

// GameRow is one imported game in the Parquet snapshot.
type GameRow struct {
	GameID      string `parquet:"game_id"`
	GameDate    string `parquet:"game_date"`
	GameTime    string `parquet:"game_time"`
	White       string `parquet:"white"`
	WhiteElo    int32  `parquet:"white_elo"`
	Black       string `parquet:"black"`
	BlackElo    int32  `parquet:"black_elo"`
	TimeControl string `parquet:"time_control"`
	BaseSeconds int32  `parquet:"base_seconds"`
	Increment   int32  `parquet:"increment_seconds"`
	Termination string `parquet:"termination"`
}

// Config configures parquet output generation.
type Config struct {
	Compression string // "snappy" | "zstd" | "none"
}

// DefaultConfig returns snappy compression.
func DefaultConfig() Config {
	return Config{Compression: "snappy"}
}

// RowFromEntry projects a ledger entry onto GameRow.
func RowFromEntry(e ledger.Entry) GameRow {
	base, inc := splitTimeControl(e.TimeControl)
	return GameRow{
		GameID:      e.GameID,
		GameDate:    e.Date,
		GameTime:    e.Time,
		White:       e.White,
		WhiteElo:    int32(e.WhiteElo),
		Black:       e.Black,
		BlackElo:    int32(e.BlackElo),
		TimeControl: e.TimeControl,
		BaseSeconds: base,
		Increment:   inc,
		Termination: e.Termination,
	}
}

// LedgerToParquet encodes entries as a Parquet file.
func LedgerToParquet(entries []ledger.Entry, cfg Config) ([]byte, error) {
	rows := make([]GameRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, RowFromEntry(e))
	}

	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[GameRow](&buf, parquet.Compression(codec))
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadParquet decodes a snapshot produced by LedgerToParquet.
func ReadParquet(data []byte) ([]GameRow, error) {
	rows, err := parquet.Read[GameRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

func compressionCodec(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown parquet compression %q", name)
	}
}

func splitTimeControl(tc string) (int32, int32) {
	baseStr, incStr, _ := strings.Cut(tc, "+")
	base, _ := strconv.Atoi(baseStr)
	inc, _ := strconv.Atoi(incStr)
	return int32(base), int32(inc)
}
