// Package storage is the durable relational Store: checks, check_sites,
// per-kind specs, events, site_outages, outages, timelines, alerters,
// groups, users and deadmanswitch_logs. It also owns the single
// transactional primitive (Store.IngestEvent) that the strike machine runs
// inside; the outage correlator's queries run after it, outside that
// transaction.
package storage

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows only one writer at a time; capping the pool to a single
	// connection makes that explicit instead of letting database/sql hand
	// out concurrent connections that then serialize on SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Database initialized at %s", dbPath)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection for testing.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// beginImmediate starts a transaction that takes SQLite's RESERVED lock up
// front (via the _txlock=immediate DSN option), the portable equivalent of
// the SELECT ... FOR UPDATE row-locking the spec describes for a
// client/server RDBMS (see DESIGN.md's Store decision): it serializes
// concurrent Ingestor calls against each other without needing per-row
// locks.
func (db *DB) beginImmediate() (*sql.Tx, error) {
	return db.conn.Begin()
}
