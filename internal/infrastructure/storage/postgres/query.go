package postgres

import (
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"sheetstock/internal/core/apperror"
)

// PostgreSQL error codes mapped to domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Builder returns a squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// MapError translates constraint violations into domain errors and wraps
// everything else with op.
func MapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperror.NewConflict("record already exists").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case codeForeignKeyViolation:
			return apperror.NewConflict("record is referenced or references a missing row").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case codeCheckViolation:
			return apperror.NewValidation("value violates a table constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
