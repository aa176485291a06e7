package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/config"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/events"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/store"
)

// CommentView is a comment as seen by one viewer.
type CommentView struct {
	*domain.Comment
	Liked bool `json:"liked"`
}

// CommentPage is one page of comments, oldest first.
type CommentPage struct {
	Items []*CommentView `json:"items"`
	Next  *uuid.UUID     `json:"next,omitempty"`
}

// CommentService manages comments on contents.
type CommentService interface {
	// Create adds a comment and notifies the content's author.
	Create(ctx context.Context, userID, contentID uuid.UUID, body string) (*domain.Comment, error)

	// Update replaces the body of a comment the user wrote.
	Update(ctx context.Context, userID, commentID uuid.UUID, body string) (*domain.Comment, error)

	// Delete removes a comment the user wrote.
	Delete(ctx context.Context, userID, commentID uuid.UUID) error

	// List pages through the comments of a content.
	List(ctx context.Context, viewerID, contentID, after uuid.UUID, limit int) (*CommentPage, error)

	// ToggleLike flips the user's like on a comment.
	ToggleLike(ctx context.Context, userID, commentID uuid.UUID) (domain.ToggleOutcome, error)
}

type commentServiceImpl struct {
	comments store.CommentStore
	contents store.ContentStore
	toggles  store.ToggleStore
	runTx    store.TxRunner
	toggler  Toggler
	paging   config.PagingConfig
	follow   followUps
	logger   *slog.Logger
}

// NewCommentService creates a CommentService.
func NewCommentService(
	comments store.CommentStore,
	contents store.ContentStore,
	toggles store.ToggleStore,
	users store.UserStore,
	runTx store.TxRunner,
	toggler Toggler,
	emitter events.EventEmitter,
	paging config.PagingConfig,
	logger *slog.Logger,
) (CommentService, error) {
	if comments == nil {
		return nil, domain.NewValidationError("comments", "cannot be nil", domain.ErrValidation)
	}
	if contents == nil {
		return nil, domain.NewValidationError("contents", "cannot be nil", domain.ErrValidation)
	}
	if toggles == nil {
		return nil, domain.NewValidationError("toggles", "cannot be nil", domain.ErrValidation)
	}
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if runTx == nil {
		return nil, domain.NewValidationError("runTx", "cannot be nil", domain.ErrValidation)
	}
	if toggler == nil {
		return nil, domain.NewValidationError("toggler", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if paging.MaxSize <= 0 {
		paging.MaxSize = 50
	}
	if paging.DefaultSize <= 0 || paging.DefaultSize > paging.MaxSize {
		paging.DefaultSize = min(10, paging.MaxSize)
	}

	log := logger.With(slog.String("component", "comment_service"))
	return &commentServiceImpl{
		comments: comments,
		contents: contents,
		toggles:  toggles,
		runTx:    runTx,
		toggler:  toggler,
		paging:   paging,
		follow:   followUps{emitter: emitter, users: users, logger: log},
		logger:   log,
	}, nil
}

// Create implements CommentService. The comment row and the content's
// comment counter change in one transaction.
func (s *commentServiceImpl) Create(ctx context.Context, userID, contentID uuid.UUID, body string) (*domain.Comment, error) {
	comment, err := domain.NewComment(contentID, userID, body)
	if err != nil {
		return nil, err
	}

	var content *domain.Content
	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		contents := s.contents.WithTx(tx)
		c, err := contents.GetByID(ctx, contentID)
		if err != nil {
			return err
		}
		content = c
		if err := s.comments.WithTx(tx).Create(ctx, comment); err != nil {
			return err
		}
		return contents.AdjustCommentCount(ctx, contentID, 1)
	})
	if err != nil {
		return nil, wrap("create_comment", "failed to save comment", err)
	}

	s.follow.notifyOwner(ctx, userID, content, domain.NotificationComment, comment.Body)

	logger.FromContextOrDefault(ctx, s.logger).Debug("comment created",
		slog.String("comment_id", comment.ID.String()),
		slog.String("content_id", contentID.String()))
	return comment, nil
}

// Update implements CommentService.
func (s *commentServiceImpl) Update(ctx context.Context, userID, commentID uuid.UUID, body string) (*domain.Comment, error) {
	var comment *domain.Comment
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		comments := s.comments.WithTx(tx)
		existing, err := comments.GetByID(ctx, commentID)
		if err != nil {
			return err
		}
		if existing.UserID != userID {
			return ErrNotOwned
		}
		existing.Body = strings.TrimSpace(body)
		existing.UpdatedAt = time.Now().UTC()
		if err := existing.Validate(); err != nil {
			return err
		}
		if err := comments.UpdateBody(ctx, commentID, existing.Body); err != nil {
			return err
		}
		comment = existing
		return nil
	})
	if err != nil {
		return nil, wrap("update_comment", "failed to update comment", err)
	}
	return comment, nil
}

// Delete implements CommentService. The counter is floored at zero by the store.
func (s *commentServiceImpl) Delete(ctx context.Context, userID, commentID uuid.UUID) error {
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		comments := s.comments.WithTx(tx)
		existing, err := comments.GetByID(ctx, commentID)
		if err != nil {
			return err
		}
		if existing.UserID != userID {
			return ErrNotOwned
		}
		if err := comments.Delete(ctx, commentID); err != nil {
			return err
		}
		return s.contents.WithTx(tx).AdjustCommentCount(ctx, existing.ContentID, -1)
	})
	if err != nil {
		return wrap("delete_comment", "failed to delete comment", err)
	}
	return nil
}

// List implements CommentService.
func (s *commentServiceImpl) List(ctx context.Context, viewerID, contentID, after uuid.UUID, limit int) (*CommentPage, error) {
	if _, err := s.contents.GetByID(ctx, contentID); err != nil {
		return nil, wrap("list_comments", "failed to load content", err)
	}

	limit = pageSize(s.paging, limit)
	comments, err := s.comments.ListByContent(ctx, contentID, after, limit+1)
	if err != nil {
		return nil, wrap("list_comments", "failed to list comments", err)
	}

	page := &CommentPage{Items: make([]*CommentView, 0, min(len(comments), limit))}
	if len(comments) > limit {
		comments = comments[:limit]
		next := comments[limit-1].ID
		page.Next = &next
	}

	liked := map[uuid.UUID]bool{}
	if viewerID != uuid.Nil && len(comments) > 0 {
		ids := make([]uuid.UUID, len(comments))
		for i, c := range comments {
			ids[i] = c.ID
		}
		if liked, err = s.toggles.ActiveFor(ctx, domain.RelationCommentLike, viewerID, ids); err != nil {
			return nil, wrap("list_comments", "failed to load like state", err)
		}
	}
	for _, c := range comments {
		page.Items = append(page.Items, &CommentView{Comment: c, Liked: liked[c.ID]})
	}
	return page, nil
}

// ToggleLike implements CommentService.
func (s *commentServiceImpl) ToggleLike(ctx context.Context, userID, commentID uuid.UUID) (domain.ToggleOutcome, error) {
	key := domain.ToggleKey{TargetID: commentID, UserID: userID, Relation: domain.RelationCommentLike}
	if err := key.Validate(); err != nil {
		return domain.ToggleOutcome{}, err
	}
	outcome, err := s.toggler.Toggle(ctx, key)
	if err != nil {
		return domain.ToggleOutcome{}, wrap("toggle_comment_like", "failed to toggle", err)
	}
	return outcome, nil
}
