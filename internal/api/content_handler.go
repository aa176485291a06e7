package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/service"
	"github.com/fithub/fithub-api/internal/store"
)

// ContentHandler serves articles and workout records under /api/{kind}.
type ContentHandler struct {
	contents service.ContentService
	logger   *slog.Logger
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(contents service.ContentService, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{
		contents: contents,
		logger:   logger.With(slog.String("component", "content_handler")),
	}
}

// Create handles POST /api/{kind}.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	kind, err := pathKind(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	req, uploads, err := parseContentRequest(w, r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, shared.ValidationMessage(err), err)
		return
	}

	result, err := h.contents.CreateContent(r.Context(), userID, kind, req.input(), uploads)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create content")
		return
	}
	if len(result.FailedUploads) > 0 {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("content created with failed uploads",
			slog.String("content_id", result.Content.ID.String()),
			slog.Int("failed", len(result.FailedUploads)))
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, result)
}

// Get handles GET /api/{kind}/{id}. A content of the other kind is not found.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	viewerID, _ := getUserIDFromContext(r)

	view, err := h.contents.GetContent(r.Context(), id, viewerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load content")
		return
	}
	if view.Kind != kind {
		HandleAPIError(w, r, store.ErrContentNotFound, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// Update handles PUT /api/{kind}/{id}.
func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if _, err := pathKind(r); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	req, uploads, err := parseContentRequest(w, r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, shared.ValidationMessage(err), err)
		return
	}
	if len(req.KeepImages)+len(uploads) > MaxImages {
		HandleAPIError(w, r, domain.NewValidationError(imagePart, "a content holds at most 10 images", domain.ErrValidation), "")
		return
	}

	result, err := h.contents.UpdateContent(r.Context(), userID, id, req.input(), req.KeepImages, uploads)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update content")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Delete handles DELETE /api/{kind}/{id}.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if err := h.contents.DeleteContent(r.Context(), userID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete content")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/{kind}?sort=&category=&author=&last=&limit=.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	q, err := contentQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	q.Kind = kind
	viewerID, _ := getUserIDFromContext(r)

	page, err := h.contents.ListContent(r.Context(), viewerID, q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list content")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// Popular handles GET /api/{kind}/popular?limit=.
func (h *ContentHandler) Popular(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
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

	items, err := h.contents.Popular(r.Context(), viewerID, kind, int(limit))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load popular content")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"items": items})
}

// ListSaved handles GET /api/users/me/saved?kind=&last=&limit=.
func (h *ContentHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	q, err := contentQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		if q.Kind, err = domain.ParseContentKind(raw); err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
	}

	page, err := h.contents.ListSaved(r.Context(), userID, q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list saved content")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// Like handles POST /api/{kind}/{id}/like.
func (h *ContentHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.contents.ToggleLike)
}

// Save handles POST /api/{kind}/{id}/save.
func (h *ContentHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.contents.ToggleSave)
}

func (h *ContentHandler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error),
) {
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	outcome, err := fn(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update reaction")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ToggleResponse{Active: outcome.Active, Count: outcome.Count})
}

// Report handles POST /api/{kind}/{id}/report.
func (h *ContentHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	res, err := h.contents.Report(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to report content")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, res)
}

// Categories handles GET /api/categories.
func (h *ContentHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.contents.Categories(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list categories")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"items": categories})
}

// contentQuery reads the shared listing parameters.
func contentQuery(r *http.Request) (service.ContentQuery, error) {
	var q service.ContentQuery
	var err error

	switch sort := store.SortOrder(r.URL.Query().Get("sort")); sort {
	case "", store.SortLatest, store.SortPopular:
		q.Sort = sort
	default:
		return q, domain.NewValidationError("sort", "must be latest or popular", domain.ErrValidation)
	}
	if q.CategoryID, err = queryInt(r, "category"); err != nil {
		return q, err
	}
	if q.AuthorID, err = queryUUID(r, "author"); err != nil {
		return q, err
	}
	if q.After, err = queryUUID(r, "last"); err != nil {
		return q, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return q, err
	}
	q.Limit = int(limit)
	return q, nil
}
