package api

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

const maxUserNotesLength = 20000

type noteRequest struct {
	Question  string `json:"question"`
	UserNotes string `json:"userNotes"`
}

func (req *noteRequest) validate() (string, bool) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return "question is required", false
	}
	if utf8.RuneCountInString(req.UserNotes) > maxUserNotesLength {
		return "userNotes is too long", false
	}
	return "", true
}

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	notes, err := h.notes.List(r.Context(), caller.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list notes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notes": notes,
		"count": len(notes),
	})
}

func (h *Handler) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	note := &domain.Note{
		UserID:    caller.UserID,
		Question:  req.Question,
		UserNotes: req.UserNotes,
	}
	if err := h.notes.Create(r.Context(), note); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create note", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save note")
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	note := &domain.Note{
		ID:        r.PathValue("id"),
		UserID:    caller.UserID,
		Question:  req.Question,
		UserNotes: req.UserNotes,
	}
	if err := h.notes.Update(r.Context(), note); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), caller.UserID, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteAllNotes(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	n, err := h.notes.DeleteAll(r.Context(), caller.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to delete notes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete notes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
