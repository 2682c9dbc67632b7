package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsmcp"

// ReindexEvent is one completed Reindex call.
type ReindexEvent struct {
	Added, Updated, Removed, Unchanged int

	Chunks     int
	Duration   time.Duration
	RolledBack bool
	Failed     bool
}

// Metrics owns a private Prometheus registry and the in-memory query
// aggregates. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	queries  *QueryMetrics

	searchTotal     *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	tierResults     *prometheus.CounterVec
	reindexTotal    *prometheus.CounterVec
	reindexDocs     *prometheus.CounterVec
	reindexChunks   prometheus.Counter
	reindexDuration prometheus.Histogram
	projectFailures *prometheus.CounterVec
	degraded        prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries:  NewQueryMetrics(DefaultQueryMetricsConfig()),
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		tierResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Returned search results by tier.",
		}, []string{"tier"}),
		reindexTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_runs_total",
			Help:      "Reindex runs by outcome.",
		}, []string{"outcome"}),
		reindexDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_documents_total",
			Help:      "Documents seen by reindex runs, by change.",
		}, []string{"change"}),
		reindexChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_chunks_written_total",
			Help:      "Chunks written by successful reindex runs.",
		}),
		reindexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reindex_duration_seconds",
			Help:      "Reindex run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		projectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_project_failures_total",
			Help:      "Failed project acquisitions.",
		}, []string{"project"}),
		degraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_degraded",
			Help:      "1 while the index is recreated empty and awaiting a reindex.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searchTotal, m.searchDuration, m.tierResults,
		m.reindexTotal, m.reindexDocs, m.reindexChunks, m.reindexDuration,
		m.projectFailures, m.degraded,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Queries returns the in-memory query aggregates, or nil.
func (m *Metrics) Queries() *QueryMetrics {
	if m == nil {
		return nil
	}
	return m.queries
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(e QueryEvent) {
	if m == nil {
		return
	}
	m.queries.Record(e)

	outcome := "ok"
	switch {
	case e.Failed:
		outcome = "error"
	case e.IsZeroResult():
		outcome = "empty"
	}
	m.searchTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(e.Latency.Seconds())
	for tier, n := range e.TierResults {
		m.tierResults.WithLabelValues(tier).Add(float64(n))
	}
}

// ObserveReindex records one reindex run.
func (m *Metrics) ObserveReindex(e ReindexEvent) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case e.Failed && e.RolledBack:
		outcome = "rolled_back"
	case e.Failed:
		outcome = "error"
	}
	m.reindexTotal.WithLabelValues(outcome).Inc()
	m.reindexDuration.Observe(e.Duration.Seconds())
	if e.Failed {
		return
	}
	m.reindexDocs.WithLabelValues("added").Add(float64(e.Added))
	m.reindexDocs.WithLabelValues("updated").Add(float64(e.Updated))
	m.reindexDocs.WithLabelValues("removed").Add(float64(e.Removed))
	m.reindexDocs.WithLabelValues("unchanged").Add(float64(e.Unchanged))
	m.reindexChunks.Add(float64(e.Chunks))
}

// ObserveProjectFailure counts a failed acquisition of project.
func (m *Metrics) ObserveProjectFailure(project string) {
	if m == nil {
		return
	}
	m.projectFailures.WithLabelValues(project).Inc()
}

// SetDegraded mirrors the index degraded flag.
func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.degraded.Set(1)
	} else {
		m.degraded.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics_listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
