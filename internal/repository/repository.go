// Package repository provides data access for the HomeworkAI backend.
//
// Queries are hand-written SQL executed through database/sql with the
// pgx stdlib driver. The schema is small (users, sessions, profiles);
// each table gets its own file.
package repository

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a query matches no row.
var ErrNotFound = errors.New("repository: not found")

// Queries bundles all database operations behind one receiver.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance backed by the given database handle.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// translateNoRows maps sql.ErrNoRows to the package sentinel so callers
// never import database/sql just to classify a miss.
func translateNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
