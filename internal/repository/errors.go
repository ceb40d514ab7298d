// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and sync components to distinguish between different failure
// scenarios. ErrDuplicate in particular is how uniqueness constraints on
// external identifiers surface to callers; it is the idempotency signal
// for webhook redelivery and repeated sync runs.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.  Handlers should
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, for
// example a second ProductionLink for the same (provider, external event).
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when an update cannot be performed because of
// the current state of the row, such as confirming a pending event that was
// already matched.  Handlers should translate this into an HTTP 409.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
