package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
)

// ToggleStore persists join rows for like, save and comment-like relations
// together with the counters that mirror them. Lock, Exists, Insert, Delete
// and AdjustCount are meant to run inside one transaction.
type ToggleStore interface {
	// TargetExists reports whether the target of the relation exists.
	TargetExists(ctx context.Context, relation domain.Relation, targetID uuid.UUID) (bool, error)

	// Lock takes a transaction-scoped lock on key. It blocks until any other
	// transaction holding the same key commits or rolls back.
	Lock(ctx context.Context, key domain.ToggleKey) error

	// Exists reports whether the join row for key is present.
	Exists(ctx context.Context, key domain.ToggleKey) (bool, error)

	// Insert creates the join row. Returns ErrDuplicate if it already exists
	// and ErrNotFound if the target is gone.
	Insert(ctx context.Context, key domain.ToggleKey) error

	// Delete removes the join row and reports whether a row was removed.
	Delete(ctx context.Context, key domain.ToggleKey) (bool, error)

	// AdjustCount adds delta to the target's counter, never going below zero,
	// and returns the new value. Returns ErrNotFound if the target is gone.
	AdjustCount(ctx context.Context, relation domain.Relation, targetID uuid.UUID, delta int64) (int64, error)

	// ActiveFor returns which of targetIDs the user has an active relation with.
	ActiveFor(ctx context.Context, relation domain.Relation, userID uuid.UUID, targetIDs []uuid.UUID) (map[uuid.UUID]bool, error)

	// WithTx returns a new ToggleStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ToggleStore
}
