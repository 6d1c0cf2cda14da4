package pgn

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGame(id, tc, termination string) string {
	return fmt.Sprintf(`[Event "Live Chess"]
[Site "Chess.com"]
[Date "2024.03.01"]
[Round "-"]
[White "magnus_fan"]
[Black "hikaru_fan"]
[Result "1-0"]
[CurrentPosition "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq -"]
[Timezone "UTC"]
[ECO "C44"]
[ECOUrl "https://www.chess.com/openings/Kings-Pawn-Opening-Kings-Knight-Variation"]
[UTCDate "2024.03.01"]
[UTCTime "23:30:00"]
[WhiteElo "1523"]
[BlackElo "1498"]
[TimeControl "%s"]
[Termination "%s"]
[StartTime "23:30:00"]
[EndDate "2024.03.01"]
[EndTime "23:41:12"]
[Link "https://www.chess.com/game/live/%s"]

1. e4 {[%%clk 0:02:59.9]} 1... e5 {[%%clk 0:02:58.1]} 2. Nf3 {[%%clk 0:02:57]} 1-0`, tc, termination, id)
}

func TestExtract(t *testing.T) {
	rec, err := Extract(sampleGame("104567891234", "180+2", "magnus_fan won by resignation"))
	require.NoError(t, err)

	assert.Equal(t, GameRecord{
		GameID:      "104567891234",
		White:       "magnus_fan",
		Black:       "hikaru_fan",
		WhiteElo:    1523,
		BlackElo:    1498,
		Date:        "2024.03.01",
		Time:        "23:30:00",
		TimeControl: "180+2",
		Termination: "magnus_fan won by resignation",
	}, rec)
	assert.Equal(t, "180", rec.BaseSeconds())

	played, err := rec.PlayedAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 23, 30, 0, 0, time.UTC), played)
}

func TestExtractShapes(t *testing.T) {
	digits := regexp.MustCompile(`^\d+$`)
	timeControl := regexp.MustCompile(`^\d+(\+\d+)?$`)

	cases := []struct {
		tc          string
		termination string
	}{
		{"600", "Game drawn by agreement"},
		{"60", "hikaru_fan won on time"},
		{"180+2", "Game drawn by insufficient material"},
		{"600+10", "magnus_fan won by checkmate"},
		{"300+5", "Game drawn by timeout vs insufficient material"},
	}
	for _, tc := range cases {
		t.Run(tc.tc, func(t *testing.T) {
			rec, err := Extract(sampleGame("42", tc.tc, tc.termination))
			require.NoError(t, err)
			assert.Regexp(t, digits, rec.GameID)
			assert.Regexp(t, timeControl, rec.TimeControl)
			assert.Equal(t, tc.tc, rec.TimeControl)
			assert.Equal(t, tc.termination, rec.Termination)
		})
	}
}

func TestExtractMalformed(t *testing.T) {
	full := sampleGame("42", "600", "Game drawn by agreement")

	cases := map[string]string{
		"missing link":       strings.Replace(full, `[Link "https://www.chess.com/game/live/42"]`, "", 1),
		"missing white elo":  strings.Replace(full, `[WhiteElo "1523"]`, "", 1),
		"daily time control": strings.Replace(full, `[TimeControl "600"]`, `[TimeControl "1/86400"]`, 1),
		"bad date":           strings.Replace(full, `[UTCDate "2024.03.01"]`, `[UTCDate "03/01/2024"]`, 1),
		"out of order": strings.Replace(
			strings.Replace(full, `[White "magnus_fan"]`, "", 1),
			`[Link `, "[White \"magnus_fan\"]\n[Link ", 1),
		"empty": "",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "got %v", err)
		})
	}
}

func TestExtractTerminationBound(t *testing.T) {
	long := "a b c d e f g h i j k l m n"
	_, err := Extract(sampleGame("7", "600", long))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	eleven := "one two three four five six seven eight nine ten end"
	rec, err := Extract(sampleGame("7", "600", eleven))
	require.NoError(t, err)
	assert.Equal(t, eleven, rec.Termination)
}

func TestTimeControl(t *testing.T) {
	tc, err := TimeControl(`[TimeControl "1/86400"]`)
	require.NoError(t, err)
	assert.Equal(t, "1/86400", tc)

	base, err := BaseSeconds(sampleGame("1", "180+2", "x won on time"))
	require.NoError(t, err)
	assert.Equal(t, "180", base)

	_, err = BaseSeconds(`[Event "Live Chess"]`)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestToLocal(t *testing.T) {
	minus5 := time.FixedZone("UTC-5", -5*60*60)
	plus5 := time.FixedZone("UTC+5", 5*60*60)

	cases := []struct {
		name      string
		date      string
		clock     string
		loc       *time.Location
		wantDate  string
		wantClock string
	}{
		{"same day", "2024.03.01", "23:30:00", minus5, "2024/03/01", "18:30:00"},
		{"leap day rollover", "2024.03.01", "03:30:00", minus5, "2024/02/29", "22:30:00"},
		{"non leap year", "2023.03.01", "03:30:00", minus5, "2023/02/28", "22:30:00"},
		{"year rollover", "2023.12.31", "23:30:00", plus5, "2024/01/01", "04:30:00"},
		{"nil means utc", "2024.03.01", "23:30:00", nil, "2024/03/01", "23:30:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, c, err := ToLocal(tc.date, tc.clock, tc.loc)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDate, d)
			assert.Equal(t, tc.wantClock, c)
		})
	}

	_, _, err := ToLocal("2024-03-01", "23:30:00", minus5)
	assert.ErrorIs(t, err, ErrMalformedRecord)
	_, _, err = ToLocal("2024.02.30", "10:00:00", minus5)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestSplitJoinRoundTrip(t *testing.T) {
	jan := []string{sampleGame("1", "600", "a won on time"), sampleGame("2", "600", "b won on time")}
	feb := []string{sampleGame("3", "180", "a won by resignation")}
	mar := []string{sampleGame("4", "60", "Game drawn by repetition"), sampleGame("5", "60", "b won on time")}

	blobs := []string{
		strings.Join(jan, Delimiter) + "\n",
		"",
		strings.Join(feb, Delimiter),
		strings.Join(mar, Delimiter) + Delimiter,
	}

	games := Split(Join(blobs))

	var want []string
	want = append(want, jan...)
	want = append(want, feb...)
	want = append(want, mar...)
	assert.Equal(t, want, games)
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split(""))
	assert.Empty(t, Split("\n\n\n\n"))
	assert.Equal(t, "", Join([]string{"", "\n"}))
}
