package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite"
)

// busyTimeout lets a second rats process wait for the history file instead
// of failing with SQLITE_BUSY.
const busyTimeout = "_pragma=busy_timeout(5000)"

// SQLiteStore keeps run history in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Connect opens the history file, creating its directory when needed.
func (s *SQLiteStore) Connect() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.path+"?"+busyTimeout)
	if err != nil {
		return fmt.Errorf("open history database %s: %w", s.path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("open history database %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) CreateTable(schema string) error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

// BatchInsert writes rows into table in a single transaction; either all
// rows land or none do. The database argument only matters for Datasette.
// Every row must carry the columns of the first one.
func (s *SQLiteStore) BatchInsert(_ string, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	slices.Sort(columns)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert into %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?%s)",
		table, strings.Join(columns, ", "), strings.Repeat(", ?", len(columns)-1))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d of %s has %d columns, want %d", i, table, len(row), len(columns))
		}
		for j, col := range columns {
			args[j] = row[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i, table, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
