package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemexplainer_requests_total",
			Help: "Total number of generation requests by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stemexplainer_request_duration_seconds",
			Help:    "Generation request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"flow"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stemexplainer_oracle_duration_seconds",
			Help:    "Oracle call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemexplainer_tokens_total",
			Help: "Total number of oracle tokens",
		},
		[]string{"provider", "type"},
	)

	ContentBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemexplainer_content_blocked_total",
			Help: "Responses withheld by the oracle's safety policy",
		},
		[]string{"reason"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stemexplainer_cache_hits_total",
			Help: "Total number of explanation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stemexplainer_cache_misses_total",
			Help: "Total number of explanation cache misses",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stemexplainer_circuit_breaker_state",
			Help: "Oracle circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	OracleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemexplainer_oracle_errors_total",
			Help: "Total number of oracle failures",
		},
		[]string{"provider"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemexplainer_rate_limit_hits_total",
			Help: "Requests rejected by the per-user limiter",
		},
		[]string{"flow"},
	)

	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemexplainer_feedback_total",
			Help: "Explanation feedback by helpfulness",
		},
		[]string{"helpful"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stemexplainer_active_connections",
			Help: "Number of HTTP requests being processed",
		},
	)
)

func RecordRequest(flow, outcome string, durationSec float64) {
	RequestsTotal.WithLabelValues(flow, outcome).Inc()
	RequestDuration.WithLabelValues(flow).Observe(durationSec)
}

func RecordOracleCall(provider string, durationSec float64, inputTokens, outputTokens int) {
	OracleDuration.WithLabelValues(provider).Observe(durationSec)
	TokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
}

func RecordOracleError(provider string) {
	OracleErrors.WithLabelValues(provider).Inc()
}

func RecordContentBlocked(reason string) {
	ContentBlocked.WithLabelValues(reason).Inc()
}

func RecordCacheHit()  { CacheHits.Inc() }
func RecordCacheMiss() { CacheMisses.Inc() }

func RecordRateLimitHit(flow string) {
	RateLimitHits.WithLabelValues(flow).Inc()
}

func RecordFeedback(helpful bool) {
	label := "false"
	if helpful {
		label = "true"
	}
	FeedbackTotal.WithLabelValues(label).Inc()
}

func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
