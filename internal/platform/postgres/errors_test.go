package postgres_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/fithub/fithub-api/internal/platform/postgres"
	"github.com/fithub/fithub-api/internal/store"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "test_table",
		ColumnName:     "test_column",
		ConstraintName: constraint,
	}
}

// MockResult implements sql.Result for testing
type MockResult struct {
	rowsAffected int64
	err          error
}

func (m MockResult) LastInsertId() (int64, error) { return 0, m.err }
func (m MockResult) RowsAffected() (int64, error) { return m.rowsAffected, m.err }

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"unique nil", nil, postgres.IsUniqueViolation, false},
		{"unique generic", errors.New("boom"), postgres.IsUniqueViolation, false},
		{"unique match", newPgError("23505", ""), postgres.IsUniqueViolation, true},
		{"unique other code", newPgError("23503", ""), postgres.IsUniqueViolation, false},
		{"fk match", newPgError("23503", ""), postgres.IsForeignKeyViolation, true},
		{"fk other code", newPgError("23505", ""), postgres.IsForeignKeyViolation, false},
		{"check match", newPgError("23514", ""), postgres.IsCheckConstraintViolation, true},
		{"check other code", newPgError("23502", ""), postgres.IsCheckConstraintViolation, false},
		{"not null match", newPgError("23502", ""), postgres.IsNotNullViolation, true},
		{"not null other code", newPgError("23514", ""), postgres.IsNotNullViolation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   sql.Result
		notFound error
		errIs    error
		wantErr  bool
	}{
		{name: "nil result", result: nil, wantErr: true},
		{name: "zero rows", result: MockResult{}, errIs: store.ErrNotFound, wantErr: true},
		{name: "zero rows specific", result: MockResult{}, notFound: store.ErrCommentNotFound, errIs: store.ErrCommentNotFound, wantErr: true},
		{name: "one row", result: MockResult{rowsAffected: 1}},
		{name: "rows affected fails", result: MockResult{err: errors.New("rows")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := postgres.CheckRowsAffected(tt.result, tt.notFound)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	undefinedTable := newPgError("42P01", "")
	generic := errors.New("generic error")

	tests := []struct {
		name   string
		err    error
		errIs  error
		errMsg string
	}{
		{name: "nil"},
		{name: "no rows", err: sql.ErrNoRows, errIs: store.ErrNotFound, errMsg: "entity not found"},
		{name: "unique", err: newPgError("23505", "x"), errIs: store.ErrDuplicate, errMsg: "entity already exists"},
		{name: "foreign key", err: newPgError("23503", "fk"), errIs: store.ErrInvalidEntity, errMsg: "foreign key violation (fk)"},
		{name: "check", err: newPgError("23514", "chk"), errIs: store.ErrInvalidEntity, errMsg: "check constraint violation (chk)"},
		{name: "not null", err: newPgError("23502", ""), errIs: store.ErrInvalidEntity, errMsg: "not null violation (test_column)"},
		{name: "other postgres", err: undefinedTable, errIs: undefinedTable},
		{name: "generic", err: generic, errIs: generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.errIs)
			assert.ErrorIs(t, got, tt.err)
			if tt.errMsg != "" {
				assert.Contains(t, got.Error(), tt.errMsg)
			}
		})
	}
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()

	generic := errors.New("generic")
	assert.Equal(t, generic, postgres.MapUniqueViolation(generic, store.ErrPhoneExists))

	err := postgres.MapUniqueViolation(newPgError("23505", "users_phone_key"), store.ErrPhoneExists)
	assert.ErrorIs(t, err, store.ErrPhoneExists)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = postgres.MapUniqueViolation(newPgError("23505", "users_phone_key"), nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Contains(t, err.Error(), "users_phone_key")
}
