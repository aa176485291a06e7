package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ContentKind distinguishes the two kinds of user posts.
type ContentKind string

const (
	// KindArticle is a long-form workout post with a title and hashtags.
	KindArticle ContentKind = "article"
	// KindRecord is a short workout log entry.
	KindRecord ContentKind = "record"
)

const (
	maxTitleLength = 100
	maxBodyLength  = 5000
	maxHashTags    = 10
	maxHashTagLen  = 30
)

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool {
	return k == KindArticle || k == KindRecord
}

// ParseContentKind accepts both the singular and the plural route form
// ("article", "articles").
func ParseContentKind(s string) (ContentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "article", "articles":
		return KindArticle, nil
	case "record", "records":
		return KindRecord, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Content is an article or workout record. Assets is the ordered list of
// images attached to it; LikeCount and SaveCount always equal the number of
// like and save rows that reference it.
type Content struct {
	ID           uuid.UUID   `json:"id"`
	Kind         ContentKind `json:"kind"`
	UserID       uuid.UUID   `json:"user_id"`
	CategoryID   int64       `json:"category_id"`
	Title        string      `json:"title,omitempty"`
	Body         string      `json:"body"`
	HashTags     []string    `json:"hashtags,omitempty"`
	Assets       []*Asset    `json:"assets"`
	LikeCount    int64       `json:"like_count"`
	SaveCount    int64       `json:"save_count"`
	CommentCount int64       `json:"comment_count"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewContent creates a validated Content with a fresh ID.
func NewContent(
	kind ContentKind,
	userID uuid.UUID,
	categoryID int64,
	title, body string,
	hashTags []string,
) (*Content, error) {
	now := time.Now().UTC()
	c := &Content{
		ID:         uuid.New(),
		Kind:       kind,
		UserID:     userID,
		CategoryID: categoryID,
		Title:      strings.TrimSpace(title),
		Body:       strings.TrimSpace(body),
		HashTags:   NormalizeHashTags(hashTags),
		Assets:     []*Asset{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field constraints. Titles are only required for articles.
func (c *Content) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if !c.Kind.Valid() {
		return NewValidationError("kind", "must be article or record", ErrInvalidKind)
	}
	if c.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrEmptyUserID)
	}
	if c.CategoryID <= 0 {
		return NewValidationError("category_id", "must be positive", ErrValidation)
	}
	if c.Kind == KindArticle && c.Title == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyContent)
	}
	if utf8.RuneCountInString(c.Title) > maxTitleLength {
		return NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength), ErrValidation)
	}
	if c.Body == "" {
		return NewValidationError("body", "cannot be empty", ErrEmptyContent)
	}
	if utf8.RuneCountInString(c.Body) > maxBodyLength {
		return NewValidationError("body", fmt.Sprintf("must be at most %d characters", maxBodyLength), ErrValidation)
	}
	if len(c.HashTags) > maxHashTags {
		return NewValidationError("hashtags", fmt.Sprintf("at most %d allowed", maxHashTags), ErrValidation)
	}
	for _, tag := range c.HashTags {
		if utf8.RuneCountInString(tag) > maxHashTagLen {
			return NewValidationError("hashtags", fmt.Sprintf("%q is too long", tag), ErrValidation)
		}
	}
	return nil
}

// IsOwnedBy reports whether userID authored the content.
func (c *Content) IsOwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}

// Counter returns the counter value tracked for relation.
func (c *Content) Counter(r Relation) int64 {
	switch r {
	case RelationLike:
		return c.LikeCount
	case RelationSave:
		return c.SaveCount
	}
	return 0
}

// NormalizeHashTags trims, strips a leading '#', lowercases, and removes
// duplicates while keeping first-seen order.
func NormalizeHashTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
