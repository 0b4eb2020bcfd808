package db

import (
	"database/sql"
	"strings"
)

// DatabaseGetter returns a database handle. Used to defer retrieval until first use.
type DatabaseGetter func() *sql.DB

// StaticDB pins a DAO to one handle, mostly for tests.
func StaticDB(db *sql.DB) DatabaseGetter {
	return func() *sql.DB { return db }
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
