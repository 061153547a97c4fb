package postgres

import (
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"booklending/internal/domain"
)

// MapError classifies a pgx error. Losing a race against another writer
// becomes domain.ErrConcurrencyConflict; anything else is wrapped with op.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return errors.Wrapf(domain.ErrConcurrencyConflict, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

// IsConflict reports a unique violation, serialization failure, deadlock or lock timeout.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation,
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable:
		return true
	}
	return false
}

// IsUniqueViolation reports a 23505 error, optionally restricted to one constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsNoRows reports a lookup that matched nothing. A malformed uuid can never
// match a row, so it counts as well.
func IsNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
