package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version. A file stamped with a
// different non-zero version holds some other schema and is refused.
const schemaVersion = 1

// ErrSchemaVersion is returned by Open for a database written with another
// schema.
var ErrSchemaVersion = errors.New("unsupported trace store version")

// connPragmas configure the store's single connection: WAL so readers
// such as weft trace can follow a run in progress, and a busy timeout for
// the moment two processes share a file.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is a SQLite trace store. It implements engine.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens the trace store at path, creating the file and its tables if
// needed. ":memory:" gives a private store that lives until Close.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace store: %w", err)
	}

	// Recorder calls arrive from the Application's dispatch goroutine and
	// from code-resolution goroutines. One connection serializes them, and
	// keeps a :memory: database from splitting across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect trace store %s: %w", path, err)
	}
	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize trace store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// initialize applies connPragmas, checks the stamped version and creates
// any missing tables. Safe to run on every open.
func initialize(db *sql.DB) error {
	for _, pragma := range connPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version != 0 && version != schemaVersion {
		return fmt.Errorf("%w: %d (want %d)", ErrSchemaVersion, version, schemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp user_version: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
