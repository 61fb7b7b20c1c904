// Package gateway runs the explanation and quiz flows: credential checks,
// input validation, identity, per-user quota, the oracle exchange and the
// interpretation of its answer.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/felipepmaragno/stem-explainer/internal/cache"
	"github.com/felipepmaragno/stem-explainer/internal/crypto"
	"github.com/felipepmaragno/stem-explainer/internal/domain"
	"github.com/felipepmaragno/stem-explainer/internal/identity"
	"github.com/felipepmaragno/stem-explainer/internal/metrics"
	"github.com/felipepmaragno/stem-explainer/internal/oracle"
	"github.com/felipepmaragno/stem-explainer/internal/prompt"
	"github.com/felipepmaragno/stem-explainer/internal/quiz"
	"github.com/felipepmaragno/stem-explainer/internal/ratelimit"
	"github.com/felipepmaragno/stem-explainer/internal/telemetry"
)

const (
	DefaultOracleTimeout = 60 * time.Second
	DefaultCacheTTL      = 10 * time.Minute
)

const (
	msgMisconfigured = "The server is not configured to generate explanations right now."
	msgUnauthorized  = "Invalid or missing authentication token. Please sign in again."
	msgOracle        = "Failed to get a response from the AI service. Please try again later."
	msgNoQuiz        = "The AI service returned an unusable quiz. Please try again."
)

type Config struct {
	Oracle   oracle.Oracle
	Verifier identity.Verifier

	// ExplainLimiter and QuizLimiter meter the two flows independently.
	ExplainLimiter ratelimit.Limiter
	QuizLimiter    ratelimit.Limiter

	Cache    cache.Cache
	CacheTTL time.Duration

	OracleTimeout time.Duration

	// Missing lists absent credentials. Any entry makes every call fail
	// with ServerMisconfigured.
	Missing []string

	Logger *slog.Logger
}

type Service struct {
	oracle         oracle.Oracle
	verifier       identity.Verifier
	explainLimiter ratelimit.Limiter
	quizLimiter    ratelimit.Limiter
	cache          cache.Cache
	cacheTTL       time.Duration
	oracleTimeout  time.Duration
	missing        []string
	logger         *slog.Logger
}

func New(cfg Config) *Service {
	s := &Service{
		oracle:         cfg.Oracle,
		verifier:       cfg.Verifier,
		explainLimiter: cfg.ExplainLimiter,
		quizLimiter:    cfg.QuizLimiter,
		cache:          cfg.Cache,
		cacheTTL:       cfg.CacheTTL,
		oracleTimeout:  cfg.OracleTimeout,
		missing:        append([]string(nil), cfg.Missing...),
		logger:         cfg.Logger,
	}

	if s.oracle == nil {
		s.missing = append(s.missing, "oracle")
	}
	if s.verifier == nil {
		s.missing = append(s.missing, "identity")
	}
	if s.explainLimiter == nil {
		s.explainLimiter = ratelimit.NewInMemoryLimiter(ratelimit.DefaultPolicy())
	}
	if s.quizLimiter == nil {
		s.quizLimiter = ratelimit.NewInMemoryLimiter(s.explainLimiter.Policy())
	}
	if s.oracleTimeout <= 0 {
		s.oracleTimeout = DefaultOracleTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Ready reports whether credentials are present.
func (s *Service) Ready() error {
	if len(s.missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(s.missing, ", "))
	}
	return nil
}

// Verify resolves an ID token to a caller. It is exported for the routes
// that authenticate without generating anything.
func (s *Service) Verify(ctx context.Context, idToken string) (domain.Identity, error) {
	if s.verifier == nil {
		return domain.Identity{}, domain.NewError(domain.ErrServerMisconfigured, msgMisconfigured, nil)
	}
	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return domain.Identity{}, domain.NewError(domain.ErrUnauthorized, msgUnauthorized, err)
	}
	return id, nil
}

func (s *Service) GenerateExplanation(ctx context.Context, req domain.ExplanationRequest) (*domain.ExplanationResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanExplain)
	defer span.End()

	result, err := s.explain(ctx, req)
	metrics.RecordRequest("explain", outcome(err), time.Since(start).Seconds())
	if err != nil {
		telemetry.Fail(span, outcome(err), err)
	}
	return result, err
}

func (s *Service) explain(ctx context.Context, req domain.ExplanationRequest) (*domain.ExplanationResult, error) {
	if err := s.Ready(); err != nil {
		return nil, domain.NewError(domain.ErrServerMisconfigured, msgMisconfigured, err)
	}

	question := strings.TrimSpace(req.QuestionText)
	if err := validateQuestion(question); err != nil {
		return nil, err
	}
	tone := domain.ParseTone(string(req.Tone))

	caller, err := s.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}

	quota, err := s.admit(ctx, s.explainLimiter, "explain", caller.UserID)
	if err != nil {
		return nil, err
	}

	span := spanFrom(ctx)
	telemetry.SetCaller(span, crypto.Pseudonym(caller.UserID), requestIDFrom(ctx))
	telemetry.SetTone(span, string(tone))
	telemetry.SetQuotaRemaining(span, quota.Remaining)

	var key string
	if s.cache != nil && s.cacheTTL > 0 {
		key = cache.ExplanationKey(tone, question)
		if cached, ok := s.cache.Get(ctx, key); ok {
			metrics.RecordCacheHit()
			telemetry.SetCacheHit(span, true)
			cached.Cached = true
			cached.Quota = quota
			return cached, nil
		}
		metrics.RecordCacheMiss()
		telemetry.SetCacheHit(span, false)
	}

	p := prompt.BuildExplanation(question, tone)
	resp, err := s.generate(ctx, oracle.Request{
		System:   p.System,
		Prompt:   p.User,
		Sampling: oracle.ExplanationSampling(),
	})
	if err != nil {
		return nil, err
	}

	result := &domain.ExplanationResult{Explanation: resp.Text, Quota: quota}

	if key != "" {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "explanation cache write failed", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "explanation generated",
		"user", crypto.Pseudonym(caller.UserID),
		"tone", tone,
		"provider", s.oracle.ID(),
		"trace_id", telemetry.TraceID(ctx),
	)
	return result, nil
}

func (s *Service) GenerateQuiz(ctx context.Context, req domain.QuizRequest) (*domain.QuizResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanQuiz)
	defer span.End()

	result, err := s.quiz(ctx, req)
	metrics.RecordRequest("quiz", outcome(err), time.Since(start).Seconds())
	if err != nil {
		telemetry.Fail(span, outcome(err), err)
	}
	return result, err
}

func (s *Service) quiz(ctx context.Context, req domain.QuizRequest) (*domain.QuizResult, error) {
	if err := s.Ready(); err != nil {
		return nil, domain.NewError(domain.ErrServerMisconfigured, msgMisconfigured, err)
	}

	if strings.TrimSpace(req.Explanation) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "An explanation is required to generate a quiz.", nil)
	}

	n := req.NumQuestions
	if n == 0 {
		n = domain.DefaultQuizQuestions
	}
	if n < domain.MinQuizQuestions || n > domain.MaxQuizQuestions {
		return nil, domain.NewError(domain.ErrInvalidInput,
			fmt.Sprintf("numQuestions must be between %d and %d.", domain.MinQuizQuestions, domain.MaxQuizQuestions), nil)
	}

	caller, err := s.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}

	quota, err := s.admit(ctx, s.quizLimiter, "quiz", caller.UserID)
	if err != nil {
		return nil, err
	}

	span := spanFrom(ctx)
	telemetry.SetCaller(span, crypto.Pseudonym(caller.UserID), requestIDFrom(ctx))
	telemetry.SetQuotaRemaining(span, quota.Remaining)

	p := prompt.BuildQuiz(req.Explanation, n)
	resp, err := s.generate(ctx, oracle.Request{
		System:   p.System,
		Prompt:   p.User,
		Schema:   quiz.Schema(),
		Sampling: oracle.QuizSampling(),
	})
	if err != nil {
		return nil, err
	}

	result, err := quiz.Parse(resp.Text, n)
	if err != nil {
		return nil, domain.NewError(domain.ErrOracleUnavailable, msgNoQuiz, err)
	}
	result.Quota = quota
	telemetry.SetQuizCounts(span, n, len(result.Questions))

	s.logger.InfoContext(ctx, "quiz generated",
		"user", crypto.Pseudonym(caller.UserID),
		"questions", len(result.Questions),
		"provider", s.oracle.ID(),
		"trace_id", telemetry.TraceID(ctx),
	)
	return result, nil
}

func validateQuestion(question string) error {
	n := utf8.RuneCountInString(question)
	if n < domain.MinQuestionLength || n > domain.MaxQuestionLength {
		return domain.NewError(domain.ErrInvalidInput,
			fmt.Sprintf("Question must be between %d and %d characters.", domain.MinQuestionLength, domain.MaxQuestionLength), nil)
	}
	return nil
}

// admit consumes one unit of the caller's quota.
func (s *Service) admit(ctx context.Context, limiter ratelimit.Limiter, flow, userID string) (*domain.Quota, error) {
	policy := limiter.Policy()

	decision, err := limiter.Allow(ctx, userID)
	if err != nil {
		// Refuse rather than serve unmetered.
		s.logger.ErrorContext(ctx, "rate limiter unavailable", "flow", flow, "error", err)
		return nil, domain.NewError(domain.ErrOracleUnavailable, "The service is temporarily unavailable. Please try again later.", err)
	}

	quota := &domain.Quota{
		Limit:     policy.MaxRequests,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt,
		Window:    policy.Window,
	}

	if !decision.Allowed {
		metrics.RecordRateLimitHit(flow)
		s.logger.WarnContext(ctx, "rate limit exceeded", "flow", flow, "user", crypto.Pseudonym(userID))
		e := domain.NewError(domain.ErrRateLimited,
			fmt.Sprintf("Rate limit exceeded: %d requests per %s. Please wait before trying again.", policy.MaxRequests, policy.Window), nil)
		e.Quota = quota
		return nil, e
	}
	return quota, nil
}

// generate calls the oracle detached from client cancellation so an
// admitted request runs to completion, bounded by the oracle timeout.
func (s *Service) generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.oracleTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanOracle)
	defer span.End()

	start := time.Now()
	resp, err := s.oracle.Generate(ctx, req)
	if err != nil {
		metrics.RecordOracleError(s.oracle.ID())
		telemetry.Fail(span, "oracle_unavailable", err)
		s.logger.ErrorContext(ctx, "oracle call failed", "provider", s.oracle.ID(), "error", err)
		return nil, domain.NewError(domain.ErrOracleUnavailable, msgOracle, err)
	}

	metrics.RecordOracleCall(s.oracle.ID(), time.Since(start).Seconds(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	telemetry.SetOracleUsage(span, s.oracle.ID(), s.oracle.Model(), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if resp.Blocked() {
		metrics.RecordContentBlocked(resp.BlockReason)
		telemetry.SetBlocked(span, resp.BlockReason)
		s.logger.WarnContext(ctx, "content blocked", "reason", resp.BlockReason)
		e := domain.NewError(domain.ErrContentBlocked,
			fmt.Sprintf("Content generation blocked due to: %s", resp.BlockReason), nil)
		e.BlockReason = resp.BlockReason
		return nil, e
	}

	if strings.TrimSpace(resp.Text) == "" {
		return nil, domain.NewError(domain.ErrOracleUnavailable, msgOracle, errors.New("empty oracle response"))
	}
	return resp, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrContentBlocked):
		return "content_blocked"
	case errors.Is(err, domain.ErrServerMisconfigured):
		return "misconfigured"
	default:
		return "oracle_unavailable"
	}
}
