package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.AddFetched(5)
	m.AddFiltered(2)
	m.AddSkipped(1)
	m.IncImported(1700000000)
	m.IncImported(1700000010)
	m.IncFailed("transport")
	m.IncRateLimitRetries()
	m.ObserveSubmitDuration(0.2)
	m.ObserveFetchDuration("http", 1.5)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.GamesFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GamesFiltered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GamesSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GamesImported))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GamesFailed.WithLabelValues("transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRetries))
	assert.Equal(t, 1700000010.0, testutil.ToFloat64(m.LastImportTimestamp))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SubmitDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AddFetched(1)
	m.IncImported(1)
	m.IncFailed("x")
	m.IncBookkeepingErrors("catalog")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)
	m.AddFetched(3)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "test_games_fetched_total 3"), string(body))

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
