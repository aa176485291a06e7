package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Relation is a binary user-to-target relation whose existence is recorded
// by a join row and mirrored by a counter on the target.
type Relation string

const (
	RelationLike        Relation = "like"
	RelationSave        Relation = "save"
	RelationCommentLike Relation = "comment_like"
)

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	switch r {
	case RelationLike, RelationSave, RelationCommentLike:
		return true
	}
	return false
}

// ToggleKey identifies one join row.
type ToggleKey struct {
	TargetID uuid.UUID
	UserID   uuid.UUID
	Relation Relation
}

// Validate checks that every part of the key is set.
func (k ToggleKey) Validate() error {
	if k.TargetID == uuid.Nil {
		return NewValidationError("target_id", "cannot be empty", ErrInvalidID)
	}
	if k.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrEmptyUserID)
	}
	if !k.Relation.Valid() {
		return NewValidationError("relation", fmt.Sprintf("unknown relation %q", k.Relation), ErrInvalidRelation)
	}
	return nil
}

// String renders the key as "relation:target:user". Used as the lock and
// coalescing key.
func (k ToggleKey) String() string {
	return string(k.Relation) + ":" + k.TargetID.String() + ":" + k.UserID.String()
}

// ToggleOutcome is the state of a relation after a toggle.
type ToggleOutcome struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}
