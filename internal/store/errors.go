package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")
	// ErrForeignKey is returned when a referenced record does not exist.
	ErrForeignKey = errors.New("foreign key violation")
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translateError maps driver errors from lib/pq or pgx onto the store
// sentinels. Unrecognised errors are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	code, constraint, ok := sqlState(err)
	if !ok {
		return err
	}
	switch code {
	case codeUniqueViolation:
		return fmt.Errorf("%w (%s): %w", ErrDuplicate, constraint, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w (%s): %w", ErrForeignKey, constraint, err)
	default:
		return err
	}
}

func sqlState(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}
