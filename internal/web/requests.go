// ABOUTME: Request endpoints for the web UI
// ABOUTME: Credential-scoped pending list, reply, dismiss and history

package web

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/2389/intent-bridge/internal/auth"
	"github.com/2389/intent-bridge/internal/directory"
	"github.com/2389/intent-bridge/internal/store"
)

// historyLimitCap bounds how many history entries one call returns.
const historyLimitCap = 50

type requestView struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	QuestionHTML string `json:"question_html"`
	Owned        bool   `json:"owned"`
	CreatedAt    string `json:"created_at"`
}

type historyView struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	HasImage    bool   `json:"has_image"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// listRequests returns pending requests visible to the caller.
//
// Visibility is strict: an anonymous caller sees the public pool, a valid
// credential sees only that user's requests, and an invalid credential sees
// an empty list rather than falling back to the public pool.
func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	var owner *string

	credential := auth.APICredential(r)
	if credential != "" {
		user, err := h.directory.Resolve(r.Context(), credential)
		if errors.Is(err, directory.ErrUnknownCredential) {
			h.logger.Warn("request list with unknown credential")
			JSON(w, http.StatusOK, []requestView{})
			return
		}
		if err != nil {
			Error(w, http.StatusInternalServerError, "failed to resolve credential")
			return
		}
		owner = &user.ID
	}

	pending, err := h.requests.ListPendingRequests(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to list pending requests", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list requests")
		return
	}

	views := make([]requestView, 0, len(pending))
	for _, req := range pending {
		views = append(views, requestView{
			ID:           req.ID,
			Question:     req.Question,
			QuestionHTML: renderMarkdown(req.Question),
			Owned:        req.OwnerID != nil,
			CreatedAt:    req.CreatedAt.Format(time.RFC3339),
		})
	}
	JSON(w, http.StatusOK, views)
}

type replyBody struct {
	Answer string `json:"answer"`
	Image  string `json:"image,omitempty"`
}

// replyRequest completes a pending request with the human's answer.
//
// Replies to requests that already reached a terminal state, or that were
// deleted after a timeout, succeed as no-ops: from the human's point of view
// the reply simply had no effect, which is not an error worth surfacing.
func (h *Handler) replyRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body replyBody
	if err := decodeJSON(r, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Answer == "" {
		Error(w, http.StatusBadRequest, "answer must not be empty")
		return
	}

	err := h.requests.CompleteRequest(r.Context(), id, body.Answer, body.Image)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Info("reply to missing request ignored", "request", id)
		JSON(w, http.StatusOK, map[string]string{"status": "gone"})
		return
	}
	if err != nil {
		h.logger.Error("failed to complete request", "request", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save reply")
		return
	}

	h.logger.Info("reply submitted", "request", id)
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dismissRequest marks a pending request as dismissed.
func (h *Handler) dismissRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.requests.DismissRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		JSON(w, http.StatusOK, map[string]string{"status": "gone"})
		return
	}
	if err != nil {
		h.logger.Error("failed to dismiss request", "request", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to dismiss request")
		return
	}

	h.logger.Info("request dismissed", "request", id)
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listHistory returns recently answered requests, newest first.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := historyLimitCap
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	entries, err := h.requests.ListHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	views := make([]historyView, 0, len(entries))
	for _, req := range entries {
		view := historyView{
			ID:        req.ID,
			Question:  req.Question,
			Answer:    req.Answer,
			HasImage:  req.Image != "",
			CreatedAt: req.CreatedAt.Format(time.RFC3339),
		}
		if req.CompletedAt != nil {
			view.CompletedAt = req.CompletedAt.Format(time.RFC3339)
		}
		views = append(views, view)
	}
	JSON(w, http.StatusOK, views)
}

// renderMarkdown converts a question to HTML for display. Render failures
// fall back to an empty string; the UI still has the raw text.
func renderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(source), &buf); err != nil {
		return ""
	}
	return buf.String()
}
