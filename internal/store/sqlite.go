package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// openDB opens a SQLite database file with the pragmas every kestrel
// database runs with. Busy timeout matters: multiple sessions share one
// database file and short write contention is normal.
func openDB(file string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", file+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %v", file, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %v", err)
	}
	return db, nil
}
