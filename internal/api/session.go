package api

import (
	"net/http"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	draft, err := h.sessions.Get(r.Context(), caller.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var draft domain.Draft
	if !decodeBody(w, r, &draft) {
		return
	}
	draft.Tone = domain.ParseTone(string(draft.Tone))

	if err := h.sessions.Put(r.Context(), caller.UserID, &draft); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	writeJSON(w, http.StatusOK, &draft)
}

func (h *Handler) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), caller.UserID); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to delete session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
