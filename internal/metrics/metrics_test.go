package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	RequestsTotal.Reset()
	RequestDuration.Reset()

	RecordRequest("explain", "success", 1.5)

	count := testutil.ToFloat64(RequestsTotal.WithLabelValues("explain", "success"))
	if count != 1 {
		t.Errorf("RequestsTotal = %v, want 1", count)
	}
}

func TestRecordOracleCall(t *testing.T) {
	TokensTotal.Reset()

	RecordOracleCall("gemini", 0.8, 100, 50)

	if got := testutil.ToFloat64(TokensTotal.WithLabelValues("gemini", "input")); got != 100 {
		t.Errorf("input tokens = %v, want 100", got)
	}
	if got := testutil.ToFloat64(TokensTotal.WithLabelValues("gemini", "output")); got != 50 {
		t.Errorf("output tokens = %v, want 50", got)
	}
}

func TestRecordContentBlocked(t *testing.T) {
	ContentBlocked.Reset()

	RecordContentBlocked("SAFETY")
	RecordContentBlocked("SAFETY")

	if got := testutil.ToFloat64(ContentBlocked.WithLabelValues("SAFETY")); got != 2 {
		t.Errorf("ContentBlocked = %v, want 2", got)
	}
}

func TestRecordCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits)
	misses := testutil.ToFloat64(CacheMisses)

	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheMiss()

	if got := testutil.ToFloat64(CacheHits) - hits; got != 1 {
		t.Errorf("cache hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheMisses) - misses; got != 2 {
		t.Errorf("cache misses delta = %v, want 2", got)
	}
}

func TestRecordFeedback(t *testing.T) {
	FeedbackTotal.Reset()

	RecordFeedback(true)
	RecordFeedback(false)
	RecordFeedback(false)

	if got := testutil.ToFloat64(FeedbackTotal.WithLabelValues("false")); got != 2 {
		t.Errorf("not helpful = %v, want 2", got)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("gemini", 1)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("gemini")); got != 1 {
		t.Errorf("CircuitBreakerState = %v, want 1", got)
	}
}

func TestRecordRateLimitHit(t *testing.T) {
	RateLimitHits.Reset()

	RecordRateLimitHit("quiz")

	if got := testutil.ToFloat64(RateLimitHits.WithLabelValues("quiz")); got != 1 {
		t.Errorf("RateLimitHits = %v, want 1", got)
	}
}
