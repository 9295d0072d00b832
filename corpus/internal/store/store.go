// Package store is the SQLite data access layer for the corpus service:
// crawl jobs, ingested files, content chunks, and the per-fetch log.
//
// The store receives an already-opened *sql.DB (see dbopen) and never
// opens connections itself. All timestamps are Unix milliseconds.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps a corpus database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
