package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felipepmaragno/stem-explainer/internal/circuitbreaker"
	"github.com/felipepmaragno/stem-explainer/internal/domain"
	"github.com/felipepmaragno/stem-explainer/internal/gateway"
	"github.com/felipepmaragno/stem-explainer/internal/metrics"
	"github.com/felipepmaragno/stem-explainer/internal/notifications"
	"github.com/felipepmaragno/stem-explainer/internal/repository"
	"github.com/felipepmaragno/stem-explainer/internal/session"
)

const maxBodyBytes = 1 << 20

type HandlerConfig struct {
	Gateway  *gateway.Service
	Notes    repository.NoteRepository
	Feedback repository.FeedbackRepository
	Sessions session.Store
	Notifier notifications.Notifier

	// Breaker and Provider are reported by /health. Both are optional.
	Breaker  *circuitbreaker.Breaker
	Provider string

	Checkers     []HealthChecker
	CheckTimeout time.Duration

	Logger *slog.Logger
}

type Handler struct {
	gateway  *gateway.Service
	notes    repository.NoteRepository
	feedback repository.FeedbackRepository
	sessions session.Store
	notifier notifications.Notifier
	breaker  *circuitbreaker.Breaker
	provider string
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		gateway:  cfg.Gateway,
		notes:    cfg.Notes,
		feedback: cfg.Feedback,
		sessions: cfg.Sessions,
		notifier: cfg.Notifier,
		breaker:  cfg.Breaker,
		provider: cfg.Provider,
		logger:   cfg.Logger,
		mux:      http.NewServeMux(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.notes == nil {
		h.notes = repository.NewInMemoryNoteRepository()
	}
	if h.feedback == nil {
		h.feedback = repository.NewInMemoryFeedbackRepository()
	}
	if h.sessions == nil {
		h.sessions = session.NewInMemoryStore(session.DefaultTTL)
	}
	if h.notifier == nil {
		h.notifier = notifications.NewLogNotifier(h.logger)
	}

	timeout := cfg.CheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkers := append([]HealthChecker{credentialsChecker{h.gateway}}, cfg.Checkers...)

	h.mux.HandleFunc("POST /api/explain", h.handleExplain)
	h.mux.HandleFunc("POST /api/quiz", h.handleQuiz)

	h.mux.HandleFunc("GET /api/notes", h.handleListNotes)
	h.mux.HandleFunc("POST /api/notes", h.handleCreateNote)
	h.mux.HandleFunc("DELETE /api/notes", h.handleDeleteAllNotes)
	h.mux.HandleFunc("PUT /api/notes/{id}", h.handleUpdateNote)
	h.mux.HandleFunc("DELETE /api/notes/{id}", h.handleDeleteNote)

	h.mux.HandleFunc("POST /api/feedback", h.handleFeedback)

	h.mux.HandleFunc("GET /api/session", h.handleGetDraft)
	h.mux.HandleFunc("PUT /api/session", h.handlePutDraft)
	h.mux.HandleFunc("DELETE /api/session", h.handleDeleteDraft)

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", handleHealthReadyWithCheckers(checkers, timeout))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)
	r = r.WithContext(gateway.WithRequestID(r.Context(), requestID))

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(sw, r)

	if strings.HasPrefix(r.URL.Path, "/api/") {
		h.logger.InfoContext(r.Context(), "request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type explainRequest struct {
	Prompt  string `json:"prompt"`
	IDToken string `json:"idToken"`
	Tone    string `json:"tone"`
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token := req.IDToken
	if token == "" {
		token = extractBearer(r)
	}

	result, err := h.gateway.GenerateExplanation(r.Context(), domain.ExplanationRequest{
		QuestionText: req.Prompt,
		Tone:         domain.Tone(req.Tone),
		IDToken:      token,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	setQuotaHeaders(w, result.Quota)
	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, result)
}

type quizRequest struct {
	Explanation  string `json:"explanation"`
	NumQuestions int    `json:"numQuestions"`
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.gateway.GenerateQuiz(r.Context(), domain.QuizRequest{
		Explanation:  req.Explanation,
		NumQuestions: req.NumQuestions,
		IDToken:      extractBearer(r),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	setQuotaHeaders(w, result.Quota)
	writeJSON(w, http.StatusOK, result)
}

// authenticate verifies the bearer credential and writes the error response
// itself when it fails.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, err := h.gateway.Verify(r.Context(), extractBearer(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return domain.Identity{}, false
	}
	return id, true
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrContentBlocked):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNoteNotFound), errors.Is(err, domain.ErrDraftNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps a classified error to its status. The hidden cause
// goes to the log, never to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var de *domain.Error
	if errors.As(err, &de) && de.Quota != nil {
		setQuotaHeaders(w, de.Quota)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter(de.Quota.ResetAt, time.Now())))
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	msg := domain.PublicMessage(err)
	switch {
	case errors.Is(err, domain.ErrNoteNotFound):
		msg = "note not found"
	case errors.Is(err, domain.ErrDraftNotFound):
		msg = "no saved session"
	}
	writeError(w, status, msg)
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func setQuotaHeaders(w http.ResponseWriter, q *domain.Quota) {
	if q == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
	w.Header().Set("X-RateLimit-Reset", q.ResetAt.UTC().Format(time.RFC3339))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
