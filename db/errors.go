package db

import (
	"errors"
	"fmt"

	"Gin_postgres_redis_tool_booking/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgExclusionViolation = "23P01"
	pgCheckViolation     = "23514"
	pgUniqueViolation    = "23505"
	pgDeadlockDetected   = "40P01"
	pgSerialization      = "40001"
)

// translate maps driver errors onto the apperr taxonomy. Errors that are
// already classified pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: already exists", apperr.ErrConflict)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return fmt.Errorf("%w: overlapping reservation for this tool", apperr.ErrConflict)
		case pgCheckViolation:
			return fmt.Errorf("%w: start must be before end", apperr.ErrValidation)
		case pgUniqueViolation:
			return fmt.Errorf("%w: already exists", apperr.ErrConflict)
		case pgDeadlockDetected, pgSerialization:
			return fmt.Errorf("%w: concurrent update, retry", apperr.ErrConflict)
		}
	}
	return err
}
