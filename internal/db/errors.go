package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/soaringjerry/stsportal/internal/services"
)

// PostgreSQL error codes the store reacts to.
const (
	PgErrUniqueViolation     = "23505"
	PgErrForeignKeyViolation = "23503"
)

// mapError turns driver errors into the services sentinels. Anything else
// passes through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrDuplicate
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return services.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrUniqueViolation:
			return services.ErrDuplicate
		case PgErrForeignKeyViolation:
			return services.ErrNotFound
		}
	}
	return err
}

// notFoundAsNil lets single-row lookups follow the (nil, nil) convention.
func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
