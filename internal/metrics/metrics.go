package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Pipeline metrics
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	SourceFailures   *prometheus.CounterVec
	NegativeDeltas   *prometheus.CounterVec
	UnmatchedStats   prometheus.Counter

	// Cache metrics
	CacheWrites     *prometheus.CounterVec
	ResponseCache   *prometheus.CounterVec
	ActiveCampaigns prometheus.Gauge

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against reg. A nil reg uses
// the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PipelineRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Campaign recomputations by outcome",
			},
			[]string{"trigger", "status"},
		),
		PipelineDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Campaign recomputation latency",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"trigger"},
		),
		SourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_read_failures_total",
				Help:      "Source family read failures",
			},
			[]string{"source"},
		),
		NegativeDeltas: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "negative_deltas_total",
				Help:      "Snapshot intervals where a cumulative counter decreased",
			},
			[]string{"metric"},
		),
		UnmatchedStats: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unmatched_platform_stats_total",
				Help:      "Platform stat rows dropped for lack of a ledger record",
			},
		),
		CacheWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_writes_total",
				Help:      "Analytics cache upserts by result",
			},
			[]string{"result"}, // inserted, replaced, unchanged, error
		),
		ResponseCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "response_cache_lookups_total",
				Help:      "Public report response cache lookups",
			},
			[]string{"hit"},
		),
		ActiveCampaigns: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduled_campaigns",
				Help:      "Campaigns covered by the last scheduled cycle",
			},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for g. A nil g uses the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordPipelineRun records one campaign recomputation.
func (m *Metrics) RecordPipelineRun(trigger, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(trigger, status).Inc()
	m.PipelineDuration.WithLabelValues(trigger).Observe(took.Seconds())
}

// RecordSourceFailure records a failed source read.
func (m *Metrics) RecordSourceFailure(source string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(source).Inc()
}

// RecordNegativeDelta records a decreasing cumulative counter.
func (m *Metrics) RecordNegativeDelta(metric string) {
	if m == nil {
		return
	}
	m.NegativeDeltas.WithLabelValues(metric).Inc()
}

// RecordUnmatched records stat rows dropped by the ledger join.
func (m *Metrics) RecordUnmatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnmatchedStats.Add(float64(n))
}

// RecordCacheWrite records an analytics cache upsert outcome.
func (m *Metrics) RecordCacheWrite(result string) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(result).Inc()
}

// RecordResponseCache records a response cache lookup.
func (m *Metrics) RecordResponseCache(hit bool) {
	if m == nil {
		return
	}
	label := "false"
	if hit {
		label = "true"
	}
	m.ResponseCache.WithLabelValues(label).Inc()
}

// SetScheduledCampaigns updates the scheduled campaign gauge.
func (m *Metrics) SetScheduledCampaigns(n int) {
	if m == nil {
		return
	}
	m.ActiveCampaigns.Set(float64(n))
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(took.Seconds())
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
