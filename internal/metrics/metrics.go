package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	RunsInFlight prometheus.Gauge

	SearchRequestsTotal   *prometheus.CounterVec
	SearchRequestDuration prometheus.Histogram

	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitRejectionsTotal prometheus.Counter
	KeyFallbacksTotal        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_runs_total",
				Help: "Total number of pipeline runs",
			},
			[]string{"status"},
		),
		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webagent_run_duration_seconds",
				Help:    "End-to-end pipeline run duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		RunsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "webagent_runs_in_flight",
				Help: "Number of pipeline runs currently executing",
			},
		),

		SearchRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_search_requests_total",
				Help: "Total number of search API requests",
			},
			[]string{"status"},
		),
		SearchRequestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webagent_search_request_duration_seconds",
				Help:    "Search API request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		),

		ExtractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_extractions_total",
				Help: "Total number of page extraction attempts",
			},
			[]string{"status"},
		),
		ExtractionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webagent_extraction_duration_seconds",
				Help:    "Per-run content extraction phase duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),

		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_llm_requests_total",
				Help: "Total number of LLM API requests",
			},
			[]string{"operation", "status"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webagent_llm_request_duration_seconds",
				Help:    "LLM request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_cache_hits_total",
				Help: "Total number of search cache hits",
			},
		),
		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_cache_misses_total",
				Help: "Total number of search cache misses",
			},
		),

		RateLimitRejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_rate_limit_rejections_total",
				Help: "Total number of search calls rejected by admission control",
			},
		),
		KeyFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_key_fallbacks_total",
				Help: "Total number of switches to the fallback search key",
			},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearchRequest(status string, duration time.Duration) {
	m.SearchRequestsTotal.WithLabelValues(status).Inc()
	m.SearchRequestDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordExtraction(status string) {
	m.ExtractionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordExtractionPhase(duration time.Duration) {
	m.ExtractionDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMRequest(operation, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(operation, status).Inc()
	m.LLMRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit()  { m.CacheHitsTotal.Inc() }
func (m *Metrics) RecordCacheMiss() { m.CacheMissesTotal.Inc() }

func (m *Metrics) RecordRateLimitRejection() { m.RateLimitRejectionsTotal.Inc() }
func (m *Metrics) RecordKeyFallback()        { m.KeyFallbacksTotal.Inc() }

func (m *Metrics) IncRunsInFlight() { m.RunsInFlight.Inc() }
func (m *Metrics) DecRunsInFlight() { m.RunsInFlight.Dec() }
