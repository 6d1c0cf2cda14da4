package main

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess2lichess/chess2lichess/internal/config"
	"github.com/chess2lichess/chess2lichess/internal/destination"
	"github.com/chess2lichess/chess2lichess/internal/filter"
	"github.com/chess2lichess/chess2lichess/internal/importer"
	"github.com/chess2lichess/chess2lichess/internal/source"
)

func TestParseArgsScopes(t *testing.T) {
	opts, err := parseArgs([]string{"-v", "-tz", "-month", "2024/02", "-filter", "rapid, blitz", "magnus_fan"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "magnus_fan", opts.Username)
	assert.True(t, opts.Verbose)
	assert.True(t, opts.ConvertTZ)
	assert.Equal(t, source.SingleMonth(source.Month{Year: 2024, Month: time.February}), opts.Scope)
	assert.Equal(t, []string{"rapid", "blitz"}, opts.Labels)

	opts, err = parseArgs([]string{"-range", "2023/11,2024/02", "magnus_fan"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, source.ScopeRange, opts.Scope.Kind)

	opts, err = parseArgs([]string{"-current", "-dry-run", "magnus_fan"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, source.ScopeCurrent, opts.Scope.Kind)
	assert.True(t, opts.DryRun)
}

func TestParseArgsUsageErrors(t *testing.T) {
	cases := map[string][]string{
		"no username":       {"-current"},
		"two usernames":     {"-current", "a", "b"},
		"no scope":          {"magnus_fan"},
		"two scopes":        {"-current", "-month", "2024/01", "magnus_fan"},
		"bad month":         {"-month", "2024-01", "magnus_fan"},
		"reversed range":    {"-range", "2024/03,2024/01", "magnus_fan"},
		"unknown flag":      {"-loud", "-current", "magnus_fan"},
		"range missing end": {"-range", "2024/03", "magnus_fan"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseArgs(args, io.Discard)
			assert.ErrorIs(t, err, errUsage)
			assert.Equal(t, exitUsage, exitCode(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitUsage, exitCode(fmt.Errorf("%w: classical", filter.ErrUnknownCategory)))
	assert.Equal(t, exitUsage, exitCode(fmt.Errorf("%w: bad", config.ErrInvalidConfig)))
	assert.Equal(t, exitNoGamesMatched, exitCode(filter.ErrNoGamesMatched))
	assert.Equal(t, exitAlreadyImported, exitCode(importer.ErrAllGamesAlreadyImported))
	assert.Equal(t, exitFailure, exitCode(fmt.Errorf("import game 1: %w", destination.ErrRateLimited)))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(&cfg, &options{Verbose: true, ConvertTZ: true, DryRun: true})
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Import.ConvertTimezone)
	assert.True(t, cfg.Import.DryRun)
}
