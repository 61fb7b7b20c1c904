// Package router picks the configured oracle provider and puts it behind a
// circuit breaker whose transitions feed metrics and operator notifications.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felipepmaragno/stem-explainer/internal/circuitbreaker"
	"github.com/felipepmaragno/stem-explainer/internal/metrics"
	"github.com/felipepmaragno/stem-explainer/internal/notifications"
	"github.com/felipepmaragno/stem-explainer/internal/oracle"
	"github.com/felipepmaragno/stem-explainer/internal/oracle/bedrock"
	"github.com/felipepmaragno/stem-explainer/internal/oracle/gemini"
	"github.com/felipepmaragno/stem-explainer/internal/oracle/openai"
)

var ErrProviderNotFound = errors.New("oracle provider not found")

const notifyTimeout = 5 * time.Second

type Settings struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	BedrockModelID string
	AWSRegion      string

	HTTPClient *http.Client
	Breaker    circuitbreaker.Config
	Notifier   notifications.Notifier
	// Dedup, when set, keeps instances from repeating the same
	// outage notification.
	Dedup  notifications.Deduplicator
	Logger *slog.Logger
}

type Router struct {
	oracle  oracle.Oracle
	breaker *circuitbreaker.Breaker
	base    oracle.Oracle
}

// New builds the provider named by s.Provider.
func New(ctx context.Context, s Settings) (*Router, error) {
	base, err := build(ctx, s)
	if err != nil {
		return nil, err
	}
	return wrap(base, s), nil
}

func build(ctx context.Context, s Settings) (oracle.Oracle, error) {
	switch s.Provider {
	case "gemini":
		return gemini.New(ctx, gemini.Config{
			APIKey:     s.GeminiAPIKey,
			Model:      s.GeminiModel,
			HTTPClient: s.HTTPClient,
		})
	case "openai":
		return openai.New(openai.Config{
			APIKey:  s.OpenAIAPIKey,
			BaseURL: s.OpenAIBaseURL,
			Model:   s.OpenAIModel,
		})
	case "bedrock":
		return bedrock.New(ctx, s.AWSRegion, s.BedrockModelID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, s.Provider)
	}
}

func wrap(base oracle.Oracle, s Settings) *Router {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := s.Breaker
	if cfg.FailureThreshold <= 0 {
		cfg = circuitbreaker.DefaultConfig()
	}

	r := &Router{base: base}
	r.breaker = circuitbreaker.New(cfg, circuitbreaker.OnStateChange(func(state circuitbreaker.State) {
		r.onStateChange(state, s.Notifier, s.Dedup, logger)
	}))
	r.oracle = oracle.WithCircuitBreaker(base, r.breaker)

	metrics.SetCircuitBreakerState(base.ID(), int(circuitbreaker.StateClosed))
	return r
}

func (r *Router) onStateChange(state circuitbreaker.State, notifier notifications.Notifier, dedup notifications.Deduplicator, logger *slog.Logger) {
	provider := r.base.ID()
	metrics.SetCircuitBreakerState(provider, int(state))
	logger.Warn("oracle circuit breaker state changed", "provider", provider, "state", state.String())

	var n notifications.Notification
	switch state {
	case circuitbreaker.StateOpen:
		n = notifications.Notification{
			Type:    notifications.NotificationOracleDown,
			Subject: "Oracle unavailable: " + provider,
			Message: "Circuit breaker opened after repeated oracle failures.",
		}
	case circuitbreaker.StateClosed:
		n = notifications.Notification{
			Type:    notifications.NotificationOracleUp,
			Subject: "Oracle recovered: " + provider,
			Message: "Circuit breaker closed.",
		}
	default:
		return
	}
	if notifier == nil {
		return
	}
	n.Data = map[string]any{"provider": provider, "model": r.base.Model()}

	// The hook runs on a request goroutine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if dedup != nil && !dedup.ShouldSend(ctx, "oracle:"+provider, n.Type) {
			return
		}
		if err := notifier.Send(ctx, n); err != nil {
			logger.Warn("breaker notification failed", "provider", provider, "error", err)
		}
	}()
}

// Oracle returns the guarded provider.
func (r *Router) Oracle() oracle.Oracle { return r.oracle }

func (r *Router) Breaker() *circuitbreaker.Breaker { return r.breaker }

func (r *Router) Provider() string { return r.base.ID() }
