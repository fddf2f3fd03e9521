package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect abstracts the engine-specific pieces of the identity store so the
// repositories can write one flavor of SQL. Queries use ? placeholders and
// are rewritten per engine.
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN builds the data source name from the connection config
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax where the driver needs it
	// (postgres wants $1, $2, ...)
	RewriteQuery(query string) string

	// SupportsLastInsertId reports whether the driver implements
	// LastInsertId(); when false, inserts go through a RETURNING clause
	SupportsLastInsertId() bool

	// ConfigureConnection applies engine-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir names the per-engine migrations directory
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL for the migration
	// tracking table
	CreateMigrationsTableQuery() string

	// BoolValue renders a boolean as an SQL literal for this engine
	BoolValue(b bool) string
}

// DialectConfig carries the connection settings a dialect may need.
// SQLite uses Path; postgres and mysql use URL.
type DialectConfig struct {
	Path string
	URL  string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered turns each ? into $1, $2, ... in order
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
