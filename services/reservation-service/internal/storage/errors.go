package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/manphil/backoffice/libs/db"
)

var ErrNotFound = errors.New("not found")

const (
	sqlStateExclusionViolation  = "23P01"
	sqlStateForeignKeyViolation = "23503"
	sqlStateUniqueViolation     = "23505"
	sqlStateCheckViolation      = "23514"
)

// IsConflict reports a rejected write from the reservations_no_overlap exclusion constraint.
func IsConflict(err error) bool {
	return db.SQLState(err) == sqlStateExclusionViolation
}

func IsUnknownProperty(err error) bool {
	return db.SQLState(err) == sqlStateForeignKeyViolation
}

func IsDuplicate(err error) bool {
	return db.SQLState(err) == sqlStateUniqueViolation
}

func IsInvalidRange(err error) bool {
	return db.SQLState(err) == sqlStateCheckViolation
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
