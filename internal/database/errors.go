package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/thereayou/heartmatch/internal/services"
	"gorm.io/gorm"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// wrapErr maps gorm and postgres errors onto the service error set.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, services.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, services.ErrNotFound, pgErr.ConstraintName)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, services.ErrConflict, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%s: %w: %v", op, services.ErrUnavailable, err)
}
