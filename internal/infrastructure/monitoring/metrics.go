package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/npcchatter/backend/internal/domain/service"
)

const namespace = "npcchatter"

// Metrics manages the Prometheus metrics.
type Metrics struct {
	TokenIssueRequests *prometheus.CounterVec
	TokenIssueLatency  *prometheus.HistogramVec
	PipelineStageTime  *prometheus.HistogramVec
	KeyRefreshes       *prometheus.CounterVec
	KeyRefreshLatency  *prometheus.HistogramVec
	KeyLookups         *prometheus.CounterVec
	RateLimitHits      *prometheus.CounterVec
	CacheAccess        *prometheus.CounterVec
	DBQueryLatency     *prometheus.HistogramVec
	VaultAPILatency    *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TokenIssueRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_token_requests_total",
				Help:      "Total number of realtime token requests by outcome and failure code.",
			},
			[]string{"outcome", "code"},
		),
		TokenIssueLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "realtime_token_latency_seconds",
				Help:      "Latency of realtime token requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		PipelineStageTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "realtime_pipeline_stage_seconds",
				Help:      "Duration of each realtime token pipeline stage.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "result"},
		),
		KeyRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_directory_fetches_total",
				Help:      "Total number of key directory fetches per source.",
			},
			[]string{"source", "result"},
		),
		KeyRefreshLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "key_directory_fetch_seconds",
				Help:      "Latency of key directory fetches.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		KeyLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_directory_lookups_total",
				Help:      "Key id lookups against the cached key set.",
			},
			[]string{"result"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of rate limit hits.",
			},
			[]string{"scope"},
		),
		CacheAccess: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_access_total",
				Help:      "Cache hits and misses by cache.",
			},
			[]string{"cache", "result"},
		),
		DBQueryLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_seconds",
				Help:      "Latency of database queries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		VaultAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vault_api_seconds",
				Help:      "Latency of Vault API calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordTokenIssue records metrics for a realtime token request.
func (m *Metrics) RecordTokenIssue(outcome, code string, duration time.Duration) {
	m.TokenIssueRequests.WithLabelValues(outcome, code).Inc()
	m.TokenIssueLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordPipelineStage(stage string, success bool, duration time.Duration) {
	m.PipelineStageTime.WithLabelValues(stage, result(success)).Observe(duration.Seconds())
}

func (m *Metrics) RecordKeyRefresh(source string, success bool, duration time.Duration) {
	m.KeyRefreshes.WithLabelValues(source, result(success)).Inc()
	m.KeyRefreshLatency.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *Metrics) RecordKeyLookup(hit bool) {
	if hit {
		m.KeyLookups.WithLabelValues("hit").Inc()
		return
	}
	m.KeyLookups.WithLabelValues("miss").Inc()
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHits.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		m.CacheAccess.WithLabelValues(cacheType, "hit").Inc()
		return
	}
	m.CacheAccess.WithLabelValues(cacheType, "miss").Inc()
}

func (m *Metrics) RecordDBQuery(operation string, duration time.Duration) {
	m.DBQueryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordVaultAPI(operation string, success bool, duration time.Duration) {
	m.VaultAPILatency.WithLabelValues(operation, result(success)).Observe(duration.Seconds())
}

// RecordHTTPRequest records one served HTTP request. route is the matched route pattern.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

var _ service.Metrics = (*Metrics)(nil)
