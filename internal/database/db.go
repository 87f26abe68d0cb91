package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkessler/hypercloud/internal/models"
)

// MapPostgresError translates driver errors to sentinel errors. The
// users table carries no unique constraints on username or email;
// uniqueness is enforced by the lock manager in the registration flow,
// so constraint violations here indicate schema-level bugs, not
// expected conflicts.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}
