package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSONWithRunFields(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(Config{Format: "json", Level: "debug"}, &buf)

	RunLogger("run-1", "magnus_fan").Debug("hello", "n", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, "magnus_fan", line["username"])
}

func TestLevelFiltering(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(Config{Format: "text", Level: "warn"}, &buf)

	Component("importer").Info("hidden")
	assert.Empty(t, buf.String())

	Component("importer").Warn("shown")
	assert.Contains(t, buf.String(), "component=importer")
}

func TestRunIDContext(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), id)
	assert.Equal(t, id, RunID(ctx))
	assert.Empty(t, RunID(context.Background()))
}
