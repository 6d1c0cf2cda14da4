package metadata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterWithoutDSNIsNoop(t *testing.T) {
	w, err := NewWriter(CatalogConfig{})
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	assert.NoError(t, w.StartRun(ctx, RunRecord{RunID: "r"}))
	assert.NoError(t, w.RecordGame(ctx, GameRecord{GameID: "1"}))
	assert.NoError(t, w.FinishRun(ctx, RunRecord{RunID: "r", Status: RunStatusSucceeded}))
}

func TestNewWriterBadDSN(t *testing.T) {
	_, err := NewWriter(CatalogConfig{PostgresDSN: "://not a dsn"})
	assert.Error(t, err)
}

func TestRunRecordWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "last_run.json")
	run := &RunRecord{
		RunID:     "run-1",
		Username:  "magnus_fan",
		Scope:     "2024/03",
		Status:    RunStatusSucceeded,
		Fetched:   10,
		Imported:  4,
		StartedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, run.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got RunRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 4, got.Imported)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
}

func TestPostgresWriter(t *testing.T) {
	dsn := os.Getenv("CATALOG_TEST_DSN")
	if dsn == "" {
		t.Skip("CATALOG_TEST_DSN not set")
	}

	w, err := NewPostgresWriter(CatalogConfig{PostgresDSN: dsn})
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	run := RunRecord{
		RunID:           "00000000-0000-0000-0000-000000000001",
		Username:        "catalog_test_user",
		Scope:           "2024/03",
		ProducerVersion: "test",
		StartedAt:       time.Now().UTC(),
	}
	require.NoError(t, w.StartRun(ctx, run))
	require.NoError(t, w.RecordGame(ctx, GameRecord{
		RunID: run.RunID, Username: run.Username, GameID: "catalog-test-1",
		White: "a", Black: "b", TimeControl: "600", PlayedAt: time.Now().UTC(), ImportedAt: time.Now().UTC(),
	}))
	run.Status = RunStatusSucceeded
	run.Imported = 1
	run.FinishedAt = time.Now().UTC()
	require.NoError(t, w.FinishRun(ctx, run))

	last, err := w.LastRun(ctx, run.Username)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, RunStatusSucceeded, last.Status)
}
