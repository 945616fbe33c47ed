package store

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict is returned when an update names a version that no
	// longer matches the stored row.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// DateLayout is the fixed-width UTC layout used for ledger dates so that
// range predicates compare lexically.
const DateLayout = "2006-01-02T15:04:05.000Z"

func formatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func newID() string {
	return uuid.NewString()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isPrimaryKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "PRIMARY KEY")
}
