package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/felipepmaragno/stem-explainer/internal/crypto"
	"github.com/felipepmaragno/stem-explainer/internal/domain"
	"github.com/felipepmaragno/stem-explainer/internal/metrics"
	"github.com/felipepmaragno/stem-explainer/internal/notifications"
)

const notifyTimeout = 5 * time.Second

type feedbackRequest struct {
	Question     string `json:"question"`
	Explanation  string `json:"explanation"`
	IsHelpful    *bool  `json:"isHelpful"`
	FeedbackText string `json:"feedbackText"`
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	req.Explanation = strings.TrimSpace(req.Explanation)
	if req.Question == "" || req.Explanation == "" {
		writeError(w, http.StatusBadRequest, "question and explanation are required")
		return
	}
	if req.IsHelpful == nil {
		writeError(w, http.StatusBadRequest, "isHelpful is required")
		return
	}

	fb := &domain.Feedback{
		Question:     req.Question,
		Explanation:  req.Explanation,
		IsHelpful:    *req.IsHelpful,
		FeedbackText: strings.TrimSpace(req.FeedbackText),
	}

	// Anonymous feedback is fine; a bad credential is not.
	if extractBearer(r) != "" {
		caller, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		fb.UserID = caller.UserID
	}

	if err := h.feedback.Record(r.Context(), fb); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to record feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}
	metrics.RecordFeedback(fb.IsHelpful)

	if !fb.IsHelpful {
		h.notifyNegative(r.Context(), fb)
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": fb.ID})
}

func (h *Handler) notifyNegative(ctx context.Context, fb *domain.Feedback) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := h.notifier.Send(ctx, notifications.Notification{
		Type:    notifications.NotificationNegativeFeedback,
		Subject: "Explanation marked not helpful",
		Message: fb.FeedbackText,
		Data: map[string]any{
			"feedback_id": fb.ID,
			"question":    fb.Question,
			"user":        crypto.Pseudonym(fb.UserID),
		},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "feedback notification failed", "feedback_id", fb.ID, "error", err)
	}
}
