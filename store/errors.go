package store

import (
	"strings"

	"github.com/Connor22/hydrus/errors"
)

// ErrClosed is returned, or wrapped, whenever a caller reaches a connection
// that has already been closed.
var ErrClosed = errors.New("database is closed")

// IsClosed reports whether err indicates the database connection is closed,
// either because it wraps ErrClosed or because the driver's own message says so.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") || strings.Contains(msg, "sql: database is closed")
}

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by inserts that violate a uniqueness constraint,
// e.g. a content hash or service key collision.
var ErrConflict = errors.New("conflict")
