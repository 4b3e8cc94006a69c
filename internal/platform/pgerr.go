package platform

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes used to classify constraint violations into
// domain error kinds without leaking schema details to callers.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (duplicate key).
func IsUniqueViolation(err error) bool {
	return pgCode(err) == sqlStateUniqueViolation
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// constraint violation.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == sqlStateForeignKeyViolation
}

// IsCheckViolation reports whether err is a Postgres CHECK constraint
// violation.
func IsCheckViolation(err error) bool {
	return pgCode(err) == sqlStateCheckViolation
}

func pgCode(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
