package api

import (
	"log/slog"
	"net/http"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/service"
)

// CommentHandler serves comments on contents.
type CommentHandler struct {
	comments service.CommentService
	logger   *slog.Logger
}

// NewCommentHandler creates a CommentHandler.
func NewCommentHandler(comments service.CommentService, logger *slog.Logger) *CommentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentHandler{
		comments: comments,
		logger:   logger.With(slog.String("component", "comment_handler")),
	}
}

// List handles GET /api/{kind}/{id}/comments?last=&limit=.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := pathKind(r); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	contentID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	after, err := queryUUID(r, "last")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	viewerID, _ := getUserIDFromContext(r)

	page, err := h.comments.List(r.Context(), viewerID, contentID, after, int(limit))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list comments")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// Create handles POST /api/{kind}/{id}/comments.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, contentID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.comments.Create(r.Context(), userID, contentID, req.Body)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create comment")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, comment)
}

// Update handles PUT /api/comments/{id}.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, commentID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.comments.Update(r.Context(), userID, commentID, req.Body)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update comment")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, comment)
}

// Delete handles DELETE /api/comments/{id}.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, commentID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if err := h.comments.Delete(r.Context(), userID, commentID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /api/comments/{id}/like.
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, commentID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	outcome, err := h.comments.ToggleLike(r.Context(), userID, commentID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update reaction")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ToggleResponse{Active: outcome.Active, Count: outcome.Count})
}
