package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/config"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/events"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/service/attach"
	"github.com/fithub/fithub-api/internal/store"
)

// Attacher uploads images and attaches them to a content.
type Attacher interface {
	Attach(ctx context.Context, parent *domain.Content, uploads []attach.Upload) error
}

// Toggler flips a like, save or comment-like relation.
type Toggler interface {
	Toggle(ctx context.Context, key domain.ToggleKey) (domain.ToggleOutcome, error)
}

// RankingStore keeps contents ordered by like count.
type RankingStore interface {
	SetScore(ctx context.Context, kind domain.ContentKind, id uuid.UUID, count int64) error
	Remove(ctx context.Context, kind domain.ContentKind, id uuid.UUID) error
	Top(ctx context.Context, kind domain.ContentKind, limit int) ([]uuid.UUID, error)
}

// ContentInput is the user-editable part of a content.
type ContentInput struct {
	CategoryID int64
	Title      string
	Body       string
	HashTags   []string
}

// ContentView is a content as seen by one viewer.
type ContentView struct {
	*domain.Content
	Liked bool `json:"liked"`
	Saved bool `json:"saved"`
}

// ContentResult is returned by create and update. FailedUploads names the
// images that could not be attached; the content itself was saved.
type ContentResult struct {
	Content       *domain.Content `json:"content"`
	FailedUploads []string        `json:"failed_uploads,omitempty"`
}

// ContentPage is one page of a content listing. Next is the cursor for the
// following page and is nil on the last page.
type ContentPage struct {
	Items []*ContentView `json:"items"`
	Next  *uuid.UUID     `json:"next,omitempty"`
}

// ContentQuery selects a content listing.
type ContentQuery struct {
	Kind       domain.ContentKind
	CategoryID int64
	AuthorID   uuid.UUID
	Sort       store.SortOrder
	After      uuid.UUID
	Limit      int
}

// ContentService manages articles and workout records.
type ContentService interface {
	// CreateContent saves a content and attaches its images. Upload failures
	// do not fail the call; they are listed in the result.
	CreateContent(ctx context.Context, userID uuid.UUID, kind domain.ContentKind, in ContentInput, uploads []attach.Upload) (*ContentResult, error)

	// GetContent returns a content with its images and the viewer's flags.
	GetContent(ctx context.Context, id, viewerID uuid.UUID) (*ContentView, error)

	// UpdateContent replaces the text fields of a content the user owns,
	// keeps the images whose URL is in keepURLs and attaches new uploads after them.
	UpdateContent(ctx context.Context, userID, id uuid.UUID, in ContentInput, keepURLs []string, uploads []attach.Upload) (*ContentResult, error)

	// DeleteContent removes a content the user owns along with its images.
	DeleteContent(ctx context.Context, userID, id uuid.UUID) error

	// ListContent pages through contents of one kind.
	ListContent(ctx context.Context, viewerID uuid.UUID, q ContentQuery) (*ContentPage, error)

	// ListSaved pages through the contents a user saved, newest first.
	ListSaved(ctx context.Context, userID uuid.UUID, q ContentQuery) (*ContentPage, error)

	// Popular returns the most liked contents of a kind.
	Popular(ctx context.Context, viewerID uuid.UUID, kind domain.ContentKind, limit int) ([]*ContentView, error)

	// ToggleLike flips the user's like on a content.
	ToggleLike(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error)

	// ToggleSave flips the user's save on a content.
	ToggleSave(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error)

	// Report flags a content for moderation. Each user reports a content at
	// most once and never their own.
	Report(ctx context.Context, userID, contentID uuid.UUID) (*ReportResult, error)

	// Categories lists the exercise categories.
	Categories(ctx context.Context) ([]domain.Category, error)
}

// ReportResult acknowledges a report.
type ReportResult struct {
	ContentID  uuid.UUID `json:"content_id"`
	ReportedAt time.Time `json:"reported_at"`
}

// ContentServiceDeps are the collaborators of a ContentService.
type ContentServiceDeps struct {
	Contents store.ContentStore
	Assets   store.AssetStore
	Toggles  store.ToggleStore
	Users    store.UserStore
	RunTx    store.TxRunner
	Uploader Attacher
	Toggler  Toggler
	Ranking  RankingStore
	Emitter  events.EventEmitter
	Paging   config.PagingConfig
}

type contentServiceImpl struct {
	contents store.ContentStore
	assets   store.AssetStore
	toggles  store.ToggleStore
	runTx    store.TxRunner
	uploader Attacher
	toggler  Toggler
	ranking  RankingStore
	paging   config.PagingConfig
	follow   followUps
	logger   *slog.Logger
}

// NewContentService creates a ContentService. Every dependency is required.
func NewContentService(deps ContentServiceDeps, logger *slog.Logger) (ContentService, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"contents", deps.Contents == nil},
		{"assets", deps.Assets == nil},
		{"toggles", deps.Toggles == nil},
		{"users", deps.Users == nil},
		{"runTx", deps.RunTx == nil},
		{"uploader", deps.Uploader == nil},
		{"toggler", deps.Toggler == nil},
		{"ranking", deps.Ranking == nil},
		{"emitter", deps.Emitter == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, domain.NewValidationError(r.name, "cannot be nil", domain.ErrValidation)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Paging.MaxSize <= 0 {
		deps.Paging.MaxSize = 50
	}
	if deps.Paging.DefaultSize <= 0 || deps.Paging.DefaultSize > deps.Paging.MaxSize {
		deps.Paging.DefaultSize = min(10, deps.Paging.MaxSize)
	}

	log := logger.With(slog.String("component", "content_service"))
	return &contentServiceImpl{
		contents: deps.Contents,
		assets:   deps.Assets,
		toggles:  deps.Toggles,
		runTx:    deps.RunTx,
		uploader: deps.Uploader,
		toggler:  deps.Toggler,
		ranking:  deps.Ranking,
		paging:   deps.Paging,
		follow:   followUps{emitter: deps.Emitter, users: deps.Users, logger: log},
		logger:   log,
	}, nil
}

// CreateContent implements ContentService.
func (s *contentServiceImpl) CreateContent(
	ctx context.Context,
	userID uuid.UUID,
	kind domain.ContentKind,
	in ContentInput,
	uploads []attach.Upload,
) (*ContentResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	content, err := domain.NewContent(kind, userID, in.CategoryID, in.Title, in.Body, in.HashTags)
	if err != nil {
		return nil, err
	}
	if len(uploads) > 0 {
		if err := attach.ValidateUploads(uploads); err != nil {
			return nil, err
		}
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		contents := s.contents.WithTx(tx)
		ok, err := contents.CategoryExists(ctx, content.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownCategory
		}
		return contents.Create(ctx, content)
	})
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, ErrUnknownCategory
		}
		log.Error("failed to create content", slog.String("error", err.Error()))
		return nil, wrap("create_content", "failed to save content", err)
	}

	result := &ContentResult{Content: content}
	if len(uploads) > 0 {
		result.FailedUploads = s.attachUploads(ctx, content, uploads)
	}

	log.Info("content created",
		slog.String("content_id", content.ID.String()),
		slog.String("kind", string(kind)),
		slog.Int("assets", len(content.Assets)),
		slog.Int("failed_uploads", len(result.FailedUploads)))
	return result, nil
}

// attachUploads uploads images for a saved content and records the asset
// rows. It returns the filenames that did not end up attached.
func (s *contentServiceImpl) attachUploads(ctx context.Context, content *domain.Content, uploads []attach.Upload) []string {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("content_id", content.ID.String()))

	before := len(content.Assets)
	var failed []string
	if err := s.uploader.Attach(ctx, content, uploads); err != nil {
		var attachErr *attach.AttachError
		if errors.As(err, &attachErr) {
			failed = attachErr.FailedFilenames()
		} else {
			failed = uploadFilenames(uploads)
		}
		log.Warn("some images were not attached",
			slog.Int("failed", len(failed)),
			slog.String("error", err.Error()))
	}

	added := content.Assets[before:]
	if len(added) == 0 {
		return failed
	}
	if err := s.assets.CreateBatch(ctx, added); err != nil {
		log.Error("failed to save asset rows, removing uploaded objects",
			slog.Int("assets", len(added)),
			slog.String("error", err.Error()))
		s.follow.cleanup(ctx, domain.StorageKeys(added))
		content.Assets = content.Assets[:before]
		return uploadFilenames(uploads)
	}
	return failed
}

func uploadFilenames(uploads []attach.Upload) []string {
	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.Filename
	}
	return names
}

// GetContent implements ContentService.
func (s *contentServiceImpl) GetContent(ctx context.Context, id, viewerID uuid.UUID) (*ContentView, error) {
	content, err := s.contents.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("get_content", "failed to load content", err)
	}
	views, err := s.hydrate(ctx, viewerID, []*domain.Content{content})
	if err != nil {
		return nil, wrap("get_content", "failed to load content details", err)
	}
	return views[0], nil
}

// hydrate loads assets and viewer flags for contents, keeping their order.
func (s *contentServiceImpl) hydrate(ctx context.Context, viewerID uuid.UUID, contents []*domain.Content) ([]*ContentView, error) {
	views := make([]*ContentView, len(contents))
	if len(contents) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, len(contents))
	for i, c := range contents {
		ids[i] = c.ID
	}

	assets, err := s.assets.ListByContent(ctx, ids...)
	if err != nil {
		return nil, err
	}

	liked := map[uuid.UUID]bool{}
	saved := map[uuid.UUID]bool{}
	if viewerID != uuid.Nil {
		if liked, err = s.toggles.ActiveFor(ctx, domain.RelationLike, viewerID, ids); err != nil {
			return nil, err
		}
		if saved, err = s.toggles.ActiveFor(ctx, domain.RelationSave, viewerID, ids); err != nil {
			return nil, err
		}
	}

	for i, c := range contents {
		if a := assets[c.ID]; a != nil {
			c.Assets = a
		} else if c.Assets == nil {
			c.Assets = []*domain.Asset{}
		}
		views[i] = &ContentView{Content: c, Liked: liked[c.ID], Saved: saved[c.ID]}
	}
	return views, nil
}

// UpdateContent implements ContentService.
func (s *contentServiceImpl) UpdateContent(
	ctx context.Context,
	userID, id uuid.UUID,
	in ContentInput,
	keepURLs []string,
	uploads []attach.Upload,
) (*ContentResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("content_id", id.String()))

	if len(uploads) > 0 {
		if err := attach.ValidateUploads(uploads); err != nil {
			return nil, err
		}
	}

	keep := make(map[string]struct{}, len(keepURLs))
	for _, u := range keepURLs {
		keep[strings.TrimSpace(u)] = struct{}{}
	}

	var (
		content *domain.Content
		removed []*domain.Asset
	)
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		contents := s.contents.WithTx(tx)
		assets := s.assets.WithTx(tx)

		existing, err := contents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !existing.IsOwnedBy(userID) {
			return ErrNotOwned
		}

		existing.CategoryID = in.CategoryID
		existing.Title = strings.TrimSpace(in.Title)
		existing.Body = strings.TrimSpace(in.Body)
		existing.HashTags = domain.NormalizeHashTags(in.HashTags)
		existing.UpdatedAt = time.Now().UTC()
		if err := existing.Validate(); err != nil {
			return err
		}
		ok, err := contents.CategoryExists(ctx, existing.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownCategory
		}
		if err := contents.Update(ctx, existing); err != nil {
			return err
		}

		current, err := assets.ListByContent(ctx, id)
		if err != nil {
			return err
		}
		kept := make([]*domain.Asset, 0, len(current[id]))
		for _, a := range current[id] {
			if _, ok := keep[a.URL]; ok {
				kept = append(kept, a)
			} else {
				removed = append(removed, a)
			}
		}
		if len(removed) > 0 {
			ids := make([]uuid.UUID, len(removed))
			for i, a := range removed {
				ids[i] = a.ID
			}
			if err := assets.DeleteByIDs(ctx, ids); err != nil {
				return err
			}
			keptIDs := make([]uuid.UUID, len(kept))
			for i, a := range kept {
				keptIDs[i] = a.ID
			}
			if err := assets.Reposition(ctx, keptIDs); err != nil {
				return err
			}
		}
		for i, a := range kept {
			a.Position = i
		}
		existing.Assets = kept
		content = existing
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, ErrUnknownCategory
		}
		return nil, wrap("update_content", "failed to update content", err)
	}

	s.follow.cleanup(ctx, domain.StorageKeys(removed))

	result := &ContentResult{Content: content}
	if len(uploads) > 0 {
		result.FailedUploads = s.attachUploads(ctx, content, uploads)
	}

	log.Info("content updated",
		slog.Int("removed_assets", len(removed)),
		slog.Int("assets", len(content.Assets)))
	return result, nil
}

// DeleteContent implements ContentService.
func (s *contentServiceImpl) DeleteContent(ctx context.Context, userID, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("content_id", id.String()))

	var (
		kind domain.ContentKind
		keys []string
	)
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		contents := s.contents.WithTx(tx)

		existing, err := contents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !existing.IsOwnedBy(userID) {
			return ErrNotOwned
		}
		assets, err := s.assets.WithTx(tx).ListByContent(ctx, id)
		if err != nil {
			return err
		}
		kind = existing.Kind
		keys = domain.StorageKeys(assets[id])
		return contents.Delete(ctx, id)
	})
	if err != nil {
		return wrap("delete_content", "failed to delete content", err)
	}

	s.follow.cleanup(ctx, keys)
	if err := s.ranking.Remove(ctx, kind, id); err != nil {
		log.Warn("failed to remove content from ranking", slog.String("error", err.Error()))
	}

	log.Info("content deleted", slog.Int("objects", len(keys)))
	return nil
}

// ListContent implements ContentService.
func (s *contentServiceImpl) ListContent(ctx context.Context, viewerID uuid.UUID, q ContentQuery) (*ContentPage, error) {
	if !q.Kind.Valid() {
		return nil, domain.NewValidationError("kind", "must be article or record", domain.ErrInvalidKind)
	}
	return s.list(ctx, viewerID, q, uuid.Nil)
}

// ListSaved implements ContentService.
func (s *contentServiceImpl) ListSaved(ctx context.Context, userID uuid.UUID, q ContentQuery) (*ContentPage, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "cannot be empty", domain.ErrEmptyUserID)
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, domain.NewValidationError("kind", "must be article or record", domain.ErrInvalidKind)
	}
	q.Sort = store.SortLatest
	return s.list(ctx, userID, q, userID)
}

func (s *contentServiceImpl) list(ctx context.Context, viewerID uuid.UUID, q ContentQuery, savedBy uuid.UUID) (*ContentPage, error) {
	switch q.Sort {
	case "":
		q.Sort = store.SortLatest
	case store.SortLatest, store.SortPopular:
	default:
		return nil, domain.NewValidationError("sort", "must be latest or popular", domain.ErrValidation)
	}
	if q.CategoryID < 0 {
		return nil, domain.NewValidationError("category_id", "cannot be negative", domain.ErrValidation)
	}

	limit := pageSize(s.paging, q.Limit)
	contents, err := s.contents.List(ctx, store.ContentQuery{
		Kind:       q.Kind,
		CategoryID: q.CategoryID,
		AuthorID:   q.AuthorID,
		SavedBy:    savedBy,
		Sort:       q.Sort,
		After:      q.After,
		Limit:      limit + 1,
	})
	if err != nil {
		return nil, wrap("list_content", "failed to list content", err)
	}

	page := &ContentPage{}
	if len(contents) > limit {
		contents = contents[:limit]
		next := contents[limit-1].ID
		page.Next = &next
	}
	if page.Items, err = s.hydrate(ctx, viewerID, contents); err != nil {
		return nil, wrap("list_content", "failed to load content details", err)
	}
	return page, nil
}

// pageSize clamps a requested page size to the configured bounds.
func pageSize(cfg config.PagingConfig, requested int) int {
	switch {
	case requested <= 0:
		return cfg.DefaultSize
	case requested > cfg.MaxSize:
		return cfg.MaxSize
	}
	return requested
}

// Popular implements ContentService. When the ranking is unavailable the
// database order by like count is used instead.
func (s *contentServiceImpl) Popular(ctx context.Context, viewerID uuid.UUID, kind domain.ContentKind, limit int) ([]*ContentView, error) {
	if !kind.Valid() {
		return nil, domain.NewValidationError("kind", "must be article or record", domain.ErrInvalidKind)
	}
	limit = pageSize(s.paging, limit)
	log := logger.FromContextOrDefault(ctx, s.logger)

	ids, err := s.ranking.Top(ctx, kind, limit)
	if err != nil {
		log.Warn("ranking unavailable, falling back to database order", slog.String("error", err.Error()))
		page, err := s.list(ctx, viewerID, ContentQuery{Kind: kind, Sort: store.SortPopular, Limit: limit}, uuid.Nil)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	}

	found, err := s.contents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, wrap("popular", "failed to load ranked content", err)
	}
	byID := make(map[uuid.UUID]*domain.Content, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	ordered := make([]*domain.Content, 0, len(ids))
	for _, id := range ids {
		// The ranking may still list contents deleted since it was updated.
		if c, ok := byID[id]; ok && c.Kind == kind {
			ordered = append(ordered, c)
		}
	}

	views, err := s.hydrate(ctx, viewerID, ordered)
	if err != nil {
		return nil, wrap("popular", "failed to load content details", err)
	}
	return views, nil
}

// ToggleLike implements ContentService. A like that becomes active notifies
// the author, and the popularity ranking follows the new count.
func (s *contentServiceImpl) ToggleLike(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error) {
	outcome, err := s.toggle(ctx, userID, contentID, domain.RelationLike)
	if err != nil {
		return outcome, err
	}

	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("content_id", contentID.String()))
	content, err := s.contents.GetByID(ctx, contentID)
	if err != nil {
		// Deleted right after the toggle; nothing left to rank or notify.
		log.Debug("content gone after like toggle", slog.String("error", err.Error()))
		return outcome, nil
	}

	if err := s.ranking.SetScore(ctx, content.Kind, content.ID, outcome.Count); err != nil {
		log.Warn("failed to update popularity ranking", slog.String("error", err.Error()))
	}
	if outcome.Active {
		s.follow.notifyOwner(ctx, userID, content, domain.NotificationLike, "")
	}
	return outcome, nil
}

// ToggleSave implements ContentService.
func (s *contentServiceImpl) ToggleSave(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error) {
	return s.toggle(ctx, userID, contentID, domain.RelationSave)
}

func (s *contentServiceImpl) toggle(ctx context.Context, userID, contentID uuid.UUID, relation domain.Relation) (domain.ToggleOutcome, error) {
	key := domain.ToggleKey{TargetID: contentID, UserID: userID, Relation: relation}
	if err := key.Validate(); err != nil {
		return domain.ToggleOutcome{}, err
	}
	outcome, err := s.toggler.Toggle(ctx, key)
	if err != nil {
		return domain.ToggleOutcome{}, wrap("toggle_"+string(relation), "failed to toggle", err)
	}
	return outcome, nil
}

// Report implements ContentService.
func (s *contentServiceImpl) Report(ctx context.Context, userID, contentID uuid.UUID) (*ReportResult, error) {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return nil, domain.NewValidationError("id", "cannot be empty", domain.ErrInvalidID)
	}

	var count int64
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		contents := s.contents.WithTx(tx)

		content, err := contents.GetByID(ctx, contentID)
		if err != nil {
			return err
		}
		if content.IsOwnedBy(userID) {
			return ErrReportOwnContent
		}
		if err := contents.InsertReport(ctx, contentID, userID); err != nil {
			return err
		}
		count, err = contents.AdjustReportCount(ctx, contentID, 1)
		return err
	})
	if err != nil {
		return nil, wrap("report_content", "failed to report content", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("content reported",
		slog.String("content_id", contentID.String()),
		slog.Int64("report_count", count))
	return &ReportResult{ContentID: contentID, ReportedAt: time.Now().UTC()}, nil
}

// Categories implements ContentService.
func (s *contentServiceImpl) Categories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.contents.ListCategories(ctx)
	if err != nil {
		return nil, wrap("categories", "failed to list categories", err)
	}
	return categories, nil
}
