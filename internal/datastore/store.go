// Package datastore persists transfer run history, locally in SQLite or
// remotely in a Datasette instance.
package datastore

// Store is a sink for history rows. RecordReport creates the run and outcome
// tables through it and then inserts one batch per table.
type Store interface {
	Connect() error
	// CreateTable applies a CREATE TABLE IF NOT EXISTS schema. Stores that
	// create tables on first insert may ignore it.
	CreateTable(schema string) error
	// BatchInsert adds rows to table. database is the Datasette database name.
	BatchInsert(database string, table string, rows []map[string]any) error
	Close() error
}
