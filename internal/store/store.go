package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the embedded database holding every course's registry tree.
// It is opened once per invocation and is not shared across processes.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at the given path.
//
// The connection is configured with WAL mode, NORMAL synchronous mode, a
// busy timeout for stray lock contention, and a single-writer pool.
// Opening is idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &Error{Code: CodeIO, Key: path, Err: fmt.Errorf("open database: %w", err)}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &Error{Code: CodeIO, Key: path, Err: fmt.Errorf("connect: %w", err)}
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY surprises.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &Error{Code: CodeIO, Key: path, Err: err}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, &Error{Code: CodeIO, Key: path, Err: fmt.Errorf("apply schema: %w", err)}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Tree returns the logical key-value namespace for one course-definition
// path. Trees are cheap handles; they share the store's connection.
func (s *Store) Tree(name string) *Tree {
	return &Tree{db: s.db, name: name}
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
