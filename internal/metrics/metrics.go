// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcome labels.
const (
	StatusOK         = "ok"
	StatusFetchError = "fetch_error"
	StatusParseError = "parse_error"
	StatusFailed     = "failed"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerSkippedTotal        *prometheus.CounterVec
	pipelineItemsTotal         *prometheus.CounterVec
	pipelineUpsertedTotal      prometheus.Counter
	pipelineChunkSeconds       prometheus.Histogram
	pipelineRunsTotal          *prometheus.CounterVec
	pipelineLastRunProducts    prometheus.Gauge
	fetchRateLimitDelaySeconds prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawler_pages_total",
				Help: "Pages requested by the crawlers, labeled by page kind and outcome.",
			},
			[]string{"kind", "status"},
		)

		crawlerSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawler_skipped_items_total",
				Help: "Products or reviews dropped because their markup did not match.",
			},
			[]string{"kind"},
		)

		pipelineItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_items_total",
				Help: "Per-product enrichment outcomes, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)

		pipelineUpsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_upserted_total",
				Help: "Product patches written to the store.",
			},
		)

		pipelineChunkSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_pipeline_chunk_duration_seconds",
				Help:    "Time to enrich and persist one chunk.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_runs_total",
				Help: "Pipeline runs, labeled by status.",
			},
			[]string{"status"},
		)

		pipelineLastRunProducts = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_pipeline_last_run_discovered_products",
				Help: "Products discovered on the category by the last run.",
			},
		)

		fetchRateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_fetch_rate_limit_delay_seconds",
				Help:    "Time fetches spent waiting on the rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one page load.
func ObservePage(kind, status string) {
	Init()
	crawlerPagesTotal.WithLabelValues(kind, status).Inc()
}

// ObserveSkipped counts one product card or review dropped during extraction.
func ObserveSkipped(kind string) {
	Init()
	crawlerSkippedTotal.WithLabelValues(kind).Inc()
}

// ObserveItem counts one enrichment outcome for a product.
func ObserveItem(stage, status string) {
	Init()
	pipelineItemsTotal.WithLabelValues(stage, status).Inc()
}

// AddUpserted adds n written patches.
func AddUpserted(n int) {
	Init()
	pipelineUpsertedTotal.Add(float64(n))
}

// ObserveChunk records how long a chunk took.
func ObserveChunk(duration time.Duration) {
	Init()
	pipelineChunkSeconds.Observe(duration.Seconds())
}

// ObserveRun counts a finished run and the size of its category.
func ObserveRun(status string, discovered int) {
	Init()
	pipelineRunsTotal.WithLabelValues(status).Inc()
	pipelineLastRunProducts.Set(float64(discovered))
}

// ObserveRateLimitDelay records time spent waiting for a fetch token.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	fetchRateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
