package postgres

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/npcchatter/backend/pkg/errors"
)

// mapPgErr classifies constraint violations; any other error is returned unchanged.
func mapPgErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.ErrConflict(what + " already exists").WithCause(err)
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return errors.ErrConflict(what + " already exists").WithCause(err)
		case "23503": // foreign_key_violation
			return errors.ErrInvalidRequest(what + " references a missing row").WithCause(err)
		}
	}
	return err
}
