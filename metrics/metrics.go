// Package metrics exposes Prometheus metrics for the trending scraper.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results recorded by CycleFinished.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Manager owns every collector of the process. A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	cyclesTotal        *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	entriesExtracted   prometheus.Counter
	entriesSkipped     *prometheus.CounterVec
	snapshotsPersisted prometheus.Counter
	summariesGenerated *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the duration histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers collectors on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ghtrending",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cyclesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cycles_total",
		Help:      "Scrape cycles by result",
	}, []string{"result"})

	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one fetch, extract and reconcile cycle",
		Buckets:   m.histogramBuckets,
	})

	m.entriesExtracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "entries_extracted_total",
		Help:      "Candidate records extracted from listing documents",
	})

	m.entriesSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "entries_skipped_total",
		Help:      "Listing entries dropped during extraction, by reason",
	}, []string{"reason"})

	m.snapshotsPersisted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "snapshots_persisted_total",
		Help:      "Trending snapshots written",
	})

	m.summariesGenerated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "summaries_total",
		Help:      "Summary generation attempts by result",
	}, []string{"result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
}

// Registry returns the registry the collectors live on.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) CycleFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(result).Inc()
	if result != ResultSkipped {
		m.cycleDuration.Observe(d.Seconds())
	}
}

func (m *Manager) EntriesExtracted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesExtracted.Add(float64(n))
}

// EntrySkipped satisfies the extractor's skip recorder.
func (m *Manager) EntrySkipped(reason string) {
	if m == nil {
		return
	}
	m.entriesSkipped.WithLabelValues(reason).Inc()
}

func (m *Manager) SnapshotsPersisted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.snapshotsPersisted.Add(float64(n))
}

func (m *Manager) SummaryGenerated(ok bool) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	m.summariesGenerated.WithLabelValues(result).Inc()
}

func (m *Manager) HTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
