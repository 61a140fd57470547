package waifuwardb

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// Sentinel errors for the repository layer. They describe row-level outcomes;
// the service maps them into domain errors.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("waifuwar record not found")

	// ErrDuplicate indicates an insert hit a unique constraint.
	ErrDuplicate = errors.New("waifuwar record already exists")
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

func sqlState(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

// IsForeignKeyViolation reports whether err comes from a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == sqlStateForeignKeyViolation
}
