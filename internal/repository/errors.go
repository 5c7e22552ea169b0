// Package repository defines error types that are reused across multiple
// repositories and store implementations. These sentinel values allow
// higher layers such as the engine and handlers to distinguish between
// different failure scenarios.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEventNotFound indicates that an event was not located in the store.
var ErrEventNotFound = errors.New("event not found")

// ErrUserNotFound indicates that a user or administrator was not located.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicated is returned when a unique key (such as a login name) is
// already taken. Handlers should translate this into an HTTP 409 response.
var ErrDuplicated = errors.New("duplicated")

// ErrForbidden is returned when the caller attempts to read a resource
// they do not own. Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrCounterUnderflow is returned when an availability counter would drop
// below zero. Its presence means the ledger and the counters have drifted.
var ErrCounterUnderflow = errors.New("availability counter underflow")

// ErrNotActive is returned when a cancellation targets a row that is
// already canceled.
var ErrNotActive = errors.New("reservation not active")

// MySQL error numbers worth telling apart.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsTransient reports whether err is a lock wait timeout or a deadlock; the
// transaction was rolled back by the server and may be retried as a whole.
func IsTransient(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlLockWaitTimeout || me.Number == mysqlDeadlock
	}
	return false
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
