package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContent(t *testing.T) {
	userID := uuid.New()

	t.Run("article", func(t *testing.T) {
		c, err := NewContent(KindArticle, userID, 3, " Leg day ", " squats ", []string{"#Legs", "legs", " ", "cardio"})
		require.NoError(t, err)
		assert.Equal(t, "Leg day", c.Title)
		assert.Equal(t, "squats", c.Body)
		assert.Equal(t, []string{"legs", "cardio"}, c.HashTags)
		assert.NotNil(t, c.Assets)
		assert.True(t, c.IsOwnedBy(userID))
		assert.False(t, c.IsOwnedBy(uuid.New()))
	})

	t.Run("record without title", func(t *testing.T) {
		c, err := NewContent(KindRecord, userID, 1, "", "5km run", nil)
		require.NoError(t, err)
		assert.Empty(t, c.Title)
	})

	t.Run("article without title", func(t *testing.T) {
		_, err := NewContent(KindArticle, userID, 1, "", "body", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyContent)

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "title", vErr.Field)
	})
}

func TestContentValidate(t *testing.T) {
	valid := func() *Content {
		return &Content{
			ID:         uuid.New(),
			Kind:       KindArticle,
			UserID:     uuid.New(),
			CategoryID: 2,
			Title:      "title",
			Body:       "body",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Content)
		wantErr error
	}{
		{"valid", func(c *Content) {}, nil},
		{"nil id", func(c *Content) { c.ID = uuid.Nil }, ErrInvalidID},
		{"bad kind", func(c *Content) { c.Kind = "video" }, ErrInvalidKind},
		{"nil user", func(c *Content) { c.UserID = uuid.Nil }, ErrEmptyUserID},
		{"no category", func(c *Content) { c.CategoryID = 0 }, ErrValidation},
		{"long title", func(c *Content) { c.Title = strings.Repeat("t", 101) }, ErrValidation},
		{"empty body", func(c *Content) { c.Body = "" }, ErrEmptyContent},
		{"long body", func(c *Content) { c.Body = strings.Repeat("b", 5001) }, ErrValidation},
		{"too many tags", func(c *Content) { c.HashTags = make([]string, 11) }, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseContentKind(t *testing.T) {
	k, err := ParseContentKind("articles")
	require.NoError(t, err)
	assert.Equal(t, KindArticle, k)

	k, err = ParseContentKind("Record")
	require.NoError(t, err)
	assert.Equal(t, KindRecord, k)

	_, err = ParseContentKind("videos")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestContentCounter(t *testing.T) {
	c := &Content{LikeCount: 4, SaveCount: 2}
	assert.Equal(t, int64(4), c.Counter(RelationLike))
	assert.Equal(t, int64(2), c.Counter(RelationSave))
	assert.Equal(t, int64(0), c.Counter(RelationCommentLike))
}

func TestToggleKey(t *testing.T) {
	target, user := uuid.New(), uuid.New()
	key := ToggleKey{TargetID: target, UserID: user, Relation: RelationSave}

	require.NoError(t, key.Validate())
	assert.Equal(t, "save:"+target.String()+":"+user.String(), key.String())

	key.Relation = "follow"
	assert.ErrorIs(t, key.Validate(), ErrInvalidRelation)

	key = ToggleKey{UserID: user, Relation: RelationLike}
	assert.ErrorIs(t, key.Validate(), ErrInvalidID)
}

func TestNewComment(t *testing.T) {
	c, err := NewComment(uuid.New(), uuid.New(), "  nice set ")
	require.NoError(t, err)
	assert.Equal(t, "nice set", c.Body)

	_, err = NewComment(uuid.New(), uuid.New(), "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = NewComment(uuid.Nil, uuid.New(), "x")
	assert.ErrorIs(t, err, ErrInvalidID)
}
