// Package metrics provides Prometheus metrics for the NBA ETL pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Extraction
	pagesFetched     *prometheus.CounterVec
	recordsFetched   *prometheus.CounterVec
	rateLimitWaits   *prometheus.CounterVec
	fetchRetries     *prometheus.CounterVec
	scrapeAttempts   *prometheus.CounterVec
	scrapeTables     prometheus.Counter
	auxExtractions   *prometheus.CounterVec
	fetchPageLatency *prometheus.HistogramVec

	// Transform
	recordsNormalized *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec

	// Load
	rowsInserted        *prometheus.CounterVec
	documentsUpserted   *prometheus.CounterVec
	documentWriteErrors *prometheus.CounterVec
	collectionDupes     *prometheus.CounterVec

	// Orchestration
	stageDuration *prometheus.HistogramVec
	pipelineRuns  *prometheus.CounterVec
	runQueueSize  prometheus.Gauge
	runsInFlight  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nbaetl",
		subsystem:        "pipeline",
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.pagesFetched = m.counterVec("pages_fetched_total", "Pages successfully fetched from the upstream API", "resource")
	m.recordsFetched = m.counterVec("records_fetched_total", "Raw records collected from the upstream API", "resource")
	m.rateLimitWaits = m.counterVec("rate_limit_waits_total", "Times the fetcher was told to back off (HTTP 429)", "resource")
	m.fetchRetries = m.counterVec("fetch_retries_total", "Page retries after a transport error or non-success status", "resource")
	m.scrapeAttempts = m.counterVec("scrape_attempts_total", "Scrape fetch attempts by outcome", "outcome")
	m.scrapeTables = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scrape_tables_total",
		Help:      "Tables extracted and written by the scraper",
	})
	m.auxExtractions = m.counterVec("aux_extractions_total", "Auxiliary extractions by name and outcome", "name", "outcome")
	m.fetchPageLatency = m.histogramVec("fetch_page_latency_milliseconds", "Latency of a single page request", "resource")

	m.recordsNormalized = m.counterVec("records_normalized_total", "Records emitted by the normalizer", "entity")
	m.duplicatesDropped = m.counterVec("duplicates_dropped_total", "In-batch duplicate ids dropped by the normalizer", "entity")

	m.rowsInserted = m.counterVec("rows_inserted_total", "Relational rows inserted (conflicts excluded)", "table")
	m.documentsUpserted = m.counterVec("documents_upserted_total", "Documents inserted or modified by upsert", "collection", "kind")
	m.documentWriteErrors = m.counterVec("document_write_errors_total", "Per-document write errors in bulk upserts", "collection")
	m.collectionDupes = m.counterVec("collection_duplicates_removed_total", "Legacy duplicate documents removed before indexing", "collection")

	m.stageDuration = m.histogramVec("stage_duration_milliseconds", "Wall time of each pipeline stage", "stage", "outcome")
	m.pipelineRuns = m.counterVec("runs_total", "Pipeline runs by outcome", "outcome")
	m.runQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_queue_size",
		Help:      "Pipeline runs waiting in the queue",
	})
	m.runsInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_in_flight",
		Help:      "Pipeline runs currently executing",
	})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
}

// RecordPageFetched records one successful page and the records it carried.
func RecordPageFetched(resource string, records int, latencyMs float64) {
	globalManager.pagesFetched.WithLabelValues(resource).Inc()
	globalManager.recordsFetched.WithLabelValues(resource).Add(float64(records))
	globalManager.fetchPageLatency.WithLabelValues(resource).Observe(latencyMs)
}

// RecordRateLimitWait increments the rate-limit counter for resource.
func RecordRateLimitWait(resource string) {
	globalManager.rateLimitWaits.WithLabelValues(resource).Inc()
}

// RecordFetchRetry increments the retry counter for resource.
func RecordFetchRetry(resource string) {
	globalManager.fetchRetries.WithLabelValues(resource).Inc()
}

// RecordScrapeAttempt records a scrape attempt outcome ("ok", "status", "error").
func RecordScrapeAttempt(outcome string) {
	globalManager.scrapeAttempts.WithLabelValues(outcome).Inc()
}

// RecordScrapeTable increments the extracted tables counter.
func RecordScrapeTable() {
	globalManager.scrapeTables.Inc()
}

// RecordAuxExtraction records an auxiliary extraction outcome.
func RecordAuxExtraction(name, outcome string) {
	globalManager.auxExtractions.WithLabelValues(name, outcome).Inc()
}

// RecordNormalized records normalizer output and dropped duplicates for entity.
func RecordNormalized(entity string, emitted, dropped int) {
	globalManager.recordsNormalized.WithLabelValues(entity).Add(float64(emitted))
	globalManager.duplicatesDropped.WithLabelValues(entity).Add(float64(dropped))
}

// RecordRowsInserted adds inserted rows for table.
func RecordRowsInserted(table string, rows int64) {
	globalManager.rowsInserted.WithLabelValues(table).Add(float64(rows))
}

// RecordDocumentsUpserted adds upsert results for collection.
func RecordDocumentsUpserted(collection string, inserted, modified int64) {
	globalManager.documentsUpserted.WithLabelValues(collection, "inserted").Add(float64(inserted))
	globalManager.documentsUpserted.WithLabelValues(collection, "modified").Add(float64(modified))
}

// RecordDocumentWriteErrors adds per-document write failures for collection.
func RecordDocumentWriteErrors(collection string, n int) {
	globalManager.documentWriteErrors.WithLabelValues(collection).Add(float64(n))
}

// RecordCollectionDuplicatesRemoved adds removed legacy duplicates for collection.
func RecordCollectionDuplicatesRemoved(collection string, n int64) {
	globalManager.collectionDupes.WithLabelValues(collection).Add(float64(n))
}

// RecordStageDuration observes a stage wall time.
func RecordStageDuration(stage, outcome string, durationMs float64) {
	globalManager.stageDuration.WithLabelValues(stage, outcome).Observe(durationMs)
}

// RecordPipelineRun counts a finished run by outcome ("succeeded", "failed").
func RecordPipelineRun(outcome string) {
	globalManager.pipelineRuns.WithLabelValues(outcome).Inc()
}

// UpdateRunQueueSize sets the number of queued runs.
func UpdateRunQueueSize(size int) {
	globalManager.runQueueSize.Set(float64(size))
}

// AddRunsInFlight adjusts the executing runs gauge by delta.
func AddRunsInFlight(delta int) {
	globalManager.runsInFlight.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
