package domain

import "fmt"

// MaxUserExercises bounds how many categories a user can follow.
const MaxUserExercises = 8

// UserExercise is an exercise category a user practises. At most one of a
// user's exercises is their main one.
type UserExercise struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Main       bool   `json:"main"`
}

// NormalizeExercises drops duplicates while keeping order and rejects
// malformed ids.
func NormalizeExercises(categoryIDs []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(categoryIDs))
	out := make([]int64, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		if id <= 0 {
			return nil, NewValidationError("category_ids", "must be positive", ErrValidation)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > MaxUserExercises {
		return nil, NewValidationError("category_ids",
			fmt.Sprintf("at most %d allowed", MaxUserExercises), ErrValidation)
	}
	return out, nil
}
