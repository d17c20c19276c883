// Package metrics provides Prometheus metrics for the book matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score histograms use linear buckets over the 0-100 score range.
var scoreBuckets = prometheus.LinearBuckets(0, 10, 11) //nolint:gochecknoglobals // shared bucket layout

// Manager owns every Prometheus collector exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Matching pipeline
	tierAttempts     *prometheus.CounterVec
	tierMatches      *prometheus.CounterVec
	tierErrors       *prometheus.CounterVec
	noMatch          prometheus.Counter
	matchLatency     prometheus.Histogram
	candidateErrors  prometheus.Counter
	identityScores   prometheus.Histogram
	editionScores    prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	cacheWriteErrors prometheus.Counter

	// Remote catalog
	catalogRequests *prometheus.CounterVec
	catalogLatency  *prometheus.HistogramVec

	// Sync pass plumbing
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge
	passBooks   *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bookmatch",
		subsystem:        "matcher",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) initializeMetrics() {
	m.tierAttempts = m.counterVec("tier_attempts_total", "Matching tiers attempted", "tier")
	m.tierMatches = m.counterVec("tier_matches_total", "Matches produced by tier and match type", "tier", "match_type")
	m.tierErrors = m.counterVec("tier_errors_total", "Tier failures treated as a miss", "tier")
	m.noMatch = m.counter("no_match_total", "Books for which no tier produced a match")
	m.matchLatency = m.histogram("match_latency_seconds", "End-to-end latency of one book match", m.histogramBuckets)
	m.candidateErrors = m.counter("candidate_scoring_errors_total", "Candidates that failed identity scoring")
	m.identityScores = m.histogram("identity_score", "Identity score of accepted title/author matches", scoreBuckets)
	m.editionScores = m.histogram("edition_score", "Score of selected editions", scoreBuckets)
	m.cacheLookups = m.counterVec("cache_lookups_total", "Title/author cache lookups by result", "result")
	m.cacheWriteErrors = m.counter("cache_write_errors_total", "Failed edition mapping writes")

	m.catalogRequests = m.counterVec("catalog_requests_total", "Remote catalog requests", "operation", "status")
	m.catalogLatency = m.histogramVec("catalog_request_duration_seconds", "Remote catalog request latency", "operation")

	m.queueSize = m.gauge("queue_size", "Books waiting in the sync queue")
	m.workerCount = m.gauge("worker_count", "Active match workers")
	m.passBooks = m.counterVec("sync_pass_books_total", "Books processed by sync passes", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds", "HTTP request duration", "endpoint", "method", "status_code")
}

// RecordTierAttempt counts one attempt of tier.
func RecordTierAttempt(tier string) { globalManager.tierAttempts.WithLabelValues(tier).Inc() }

// RecordTierMatch counts a match produced by tier.
func RecordTierMatch(tier, matchType string) {
	globalManager.tierMatches.WithLabelValues(tier, matchType).Inc()
}

// RecordTierError counts a tier failure.
func RecordTierError(tier string) { globalManager.tierErrors.WithLabelValues(tier).Inc() }

// RecordNoMatch counts a book that exhausted every tier.
func RecordNoMatch() { globalManager.noMatch.Inc() }

// RecordMatchLatency observes end-to-end match latency in seconds.
func RecordMatchLatency(seconds float64) { globalManager.matchLatency.Observe(seconds) }

// RecordCandidateErrors adds n candidate scoring failures.
func RecordCandidateErrors(n int) { globalManager.candidateErrors.Add(float64(n)) }

// RecordIdentityScore observes an accepted identity score.
func RecordIdentityScore(score float64) { globalManager.identityScores.Observe(score) }

// RecordEditionScore observes a selected edition score.
func RecordEditionScore(score float64) { globalManager.editionScores.Observe(score) }

// RecordCacheLookup counts a cache lookup; result is hit, miss or error.
func RecordCacheLookup(result string) { globalManager.cacheLookups.WithLabelValues(result).Inc() }

// RecordCacheWriteError counts a failed cache write.
func RecordCacheWriteError() { globalManager.cacheWriteErrors.Inc() }

// RecordCatalogRequest counts a catalog request and observes its latency.
func RecordCatalogRequest(operation, status string, seconds float64) {
	globalManager.catalogRequests.WithLabelValues(operation, status).Inc()
	globalManager.catalogLatency.WithLabelValues(operation).Observe(seconds)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordPassBook counts one book finished by a sync pass.
func RecordPassBook(outcome string) { globalManager.passBooks.WithLabelValues(outcome).Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
