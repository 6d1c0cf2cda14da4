package filter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess2lichess/chess2lichess/internal/pgn"
)

func game(id, tc string) string {
	return fmt.Sprintf("[Event \"Live Chess\"]\n[TimeControl \"%s\"]\n[Link \"https://www.chess.com/game/live/%s\"]\n\n1. e4 1-0", tc, id)
}

func TestApplyIncrementUsesBase(t *testing.T) {
	f := New(nil)
	games := []string{game("1", "180+2")}

	kept, err := f.Apply(games, []string{"blitz"})
	require.NoError(t, err)
	assert.Equal(t, games, kept)

	_, err = f.Apply(games, []string{"bullet"})
	assert.ErrorIs(t, err, ErrNoGamesMatched)
}

func TestApplyPreservesOrder(t *testing.T) {
	games := []string{
		game("1", "600"),
		game("2", "60"),
		game("3", "180"),
		game("4", "600+5"),
		game("5", "1/86400"),
		game("6", "60+1"),
	}

	kept, err := New(nil).Apply(games, []string{"rapid", "Bullet"})
	require.NoError(t, err)
	assert.Equal(t, []string{games[0], games[1], games[3], games[5]}, kept)
}

func TestUnknownCategory(t *testing.T) {
	f := New(nil)
	err := f.Validate([]string{"rapid", "classical"})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = f.Apply([]string{game("1", "600")}, []string{"classical"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCustomTable(t *testing.T) {
	f := New(map[string]string{"Classical": "1800"})
	assert.Equal(t, []string{"classical"}, f.Labels())

	kept, err := f.Apply([]string{game("1", "1800+30"), game("2", "600")}, []string{"classical"})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestMissingTimeControl(t *testing.T) {
	_, err := New(nil).Apply([]string{"[Event \"Live Chess\"]"}, []string{"rapid"})
	assert.ErrorIs(t, err, pgn.ErrMalformedRecord)
}
