// Package repository holds the MySQL data access for users, the bonus
// ledger, storage cells and reporting, plus the Redis-backed QR cache.
// Repositories return the sentinel values below so services can
// translate them into domain errors without looking at driver details.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with a unique key,
// for example a second user with the same phone number.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
