package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"sheetstock/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "sheets_code_key"}, apperror.CodeConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperror.CodeConflict},
		{"check", &pgconn.PgError{Code: "23514"}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperror.Is(MapError("insert", tt.err), tt.code))
		})
	}

	boom := errors.New("connection reset")
	err := MapError("insert sheet", boom)
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "insert sheet: connection reset")
	assert.Equal(t, apperror.CodePersistence, apperror.Normalize(err).Code)
}

func TestBuilder_DollarPlaceholders(t *testing.T) {
	sql, args, err := Builder().Select("id").From("batches").
		Where("sheet_id = ?", "x").
		Where("quantity_remaining > ?", 0).
		ToSql()
	assert.NoError(t, err)
	assert.Equal(t, "SELECT id FROM batches WHERE sheet_id = $1 AND quantity_remaining > $2", sql)
	assert.Len(t, args, 2)
}
