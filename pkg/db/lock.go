package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is meaningful for the dialect.
func SupportsRowLocks(conn *gorm.DB) bool {
	if conn == nil || conn.Dialector == nil {
		return false
	}
	return conn.Dialector.Name() != TypeSQLite
}

// ForUpdate adds a row lock to the next query. SQLite serializes writers and
// has no FOR clause, so the lock is omitted there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if !SupportsRowLocks(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
