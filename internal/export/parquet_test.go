package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess2lichess/chess2lichess/internal/ledger"
)

func TestLedgerToParquetRoundTrip(t *testing.T) {
	entries := []ledger.Entry{
		{GameID: "1", Date: "2024/03/01", Time: "18:30:00", White: "a", WhiteElo: 1500, Black: "b", BlackElo: 1490, TimeControl: "180+2", Termination: "a won on time"},
		{GameID: "2", Date: "2024/03/02", Time: "09:00:00", White: "b", WhiteElo: 1495, Black: "a", BlackElo: 1510, TimeControl: "600", Termination: "Game drawn by agreement"},
	}

	for _, codec := range []string{"snappy", "zstd", "none"} {
		t.Run(codec, func(t *testing.T) {
			data, err := LedgerToParquet(entries, Config{Compression: codec})
			require.NoError(t, err)

			rows, err := ReadParquet(data)
			require.NoError(t, err)
			require.Len(t, rows, 2)

			assert.Equal(t, RowFromEntry(entries[0]), rows[0])
			assert.Equal(t, int32(180), rows[0].BaseSeconds)
			assert.Equal(t, int32(2), rows[0].Increment)
			assert.Equal(t, int32(600), rows[1].BaseSeconds)
			assert.Equal(t, int32(0), rows[1].Increment)
		})
	}
}

func TestUnknownCompression(t *testing.T) {
	_, err := LedgerToParquet(nil, Config{Compression: "lz4-ish"})
	assert.Error(t, err)
}

func TestCompressionCodecSelection(t *testing.T) {
	cases := map[string]string{
		"":       "SNAPPY",
		"snappy": "SNAPPY",
		"ZSTD":   "ZSTD",
		"none":   "UNCOMPRESSED",
	}
	for name, want := range cases {
		codec, err := compressionCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, codec.String(), name)
	}
}
