// Package metrics provides Prometheus metrics for chess2lichess.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a migration. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Game metrics
	GamesFetched  prometheus.Counter
	GamesFiltered prometheus.Counter
	GamesSkipped  prometheus.Counter
	GamesImported prometheus.Counter
	GamesFailed   *prometheus.CounterVec

	// Retry metrics
	RateLimitRetries prometheus.Counter

	// Timing metrics
	FetchDuration  *prometheus.HistogramVec
	SubmitDuration prometheus.Histogram

	// Bookkeeping errors
	BookkeepingErrors *prometheus.CounterVec

	LastImportTimestamp prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init registers metrics on the default registry.
// Call this once at startup.
func Init(namespace string) *Metrics {
	m := New(namespace, prometheus.DefaultRegisterer)
	defaultMetrics = m
	return m
}

// New creates metrics registered on reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "chess2lichess"
	}
	factory := promauto.With(reg)

	return &Metrics{
		GamesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_fetched_total",
			Help:      "Total number of games downloaded from chess.com",
		}),
		GamesFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_filtered_out_total",
			Help:      "Total number of games dropped by the category filter",
		}),
		GamesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_skipped_total",
			Help:      "Total number of games skipped (already in the ledger)",
		}),
		GamesImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_imported_total",
			Help:      "Total number of games imported to lichess",
		}),
		GamesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_failed_total",
			Help:      "Total number of games whose submission failed",
		}, []string{"reason"}),
		RateLimitRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_retries_total",
			Help:      "Total number of submissions retried after a rate-limit cooldown",
		}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time to download one month of games",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"source"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time for one lichess import request",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		BookkeepingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookkeeping_errors_total",
			Help:      "Total number of non-fatal checkpoint, catalog and mirror errors",
		}, []string{"component"}),
		LastImportTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_import_timestamp_seconds",
			Help:      "Unix time of the last successful import",
		}),
	}
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	return http.ListenAndServe(address, Handler(prometheus.DefaultGatherer))
}

// Handler serves /metrics from g and a /health probe.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// AddFetched adds to the fetched games counter.
func (m *Metrics) AddFetched(n int) {
	if m == nil {
		return
	}
	m.GamesFetched.Add(float64(n))
}

// AddFiltered adds to the filtered-out games counter.
func (m *Metrics) AddFiltered(n int) {
	if m == nil {
		return
	}
	m.GamesFiltered.Add(float64(n))
}

// AddSkipped adds to the already-imported games counter.
func (m *Metrics) AddSkipped(n int) {
	if m == nil {
		return
	}
	m.GamesSkipped.Add(float64(n))
}

// IncImported increments the imported games counter.
func (m *Metrics) IncImported(unix float64) {
	if m == nil {
		return
	}
	m.GamesImported.Inc()
	m.LastImportTimestamp.Set(unix)
}

// IncFailed increments the failed games counter.
func (m *Metrics) IncFailed(reason string) {
	if m == nil {
		return
	}
	m.GamesFailed.WithLabelValues(reason).Inc()
}

// IncRateLimitRetries increments the retry counter.
func (m *Metrics) IncRateLimitRetries() {
	if m == nil {
		return
	}
	m.RateLimitRetries.Inc()
}

// ObserveFetchDuration records the time to download one month.
func (m *Metrics) ObserveFetchDuration(source string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(seconds)
}

// ObserveSubmitDuration records the time of one import request.
func (m *Metrics) ObserveSubmitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(seconds)
}

// IncBookkeepingErrors increments the bookkeeping errors counter.
func (m *Metrics) IncBookkeepingErrors(component string) {
	if m == nil {
		return
	}
	m.BookkeepingErrors.WithLabelValues(component).Inc()
}
