// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// auth service and handlers to distinguish between failure scenarios
// without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an insert collides with an existing key
// other than the user email (e.g. a refresh token identifier).
var ErrConflict = errors.New("conflict")

// isDuplicateKey reports whether err is MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
