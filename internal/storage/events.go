package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

// RecentEvents returns the most recent events for a check, newest first,
// optionally scoped to a single site.
func (db *DB) RecentEvents(checkID int64, site string, limit int) ([]model.Event, error) {
	query := `SELECT id, check_id, site, status, message, created_at, outage_id FROM events WHERE check_id = ?`
	args := []interface{}{checkID}
	if site != "" {
		query += ` AND site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// EventsForCheck returns a check's Events, newest first, optionally scoped
// to [from, to) by created_at, for GET /api/checks/{uuid}/events.
func (db *DB) EventsForCheck(checkID int64, from, to *time.Time) ([]model.Event, error) {
	query := `SELECT id, check_id, site, status, message, created_at, outage_id FROM events WHERE check_id = ?`
	args := []interface{}{checkID}
	if from != nil {
		query += ` AND created_at >= ?`
		args = append(args, from.UTC().Format("2006-01-02T15:04:05"))
	}
	if to != nil {
		query += ` AND created_at < ?`
		args = append(args, to.UTC().Format("2006-01-02T15:04:05"))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events for check: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var createdAt string
	var outageID sql.NullInt64
	if err := row.Scan(&e.ID, &e.CheckID, &e.Site, &e.Status, &e.Message, &createdAt, &outageID); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if t, err := parseTime(createdAt); err == nil {
		e.CreatedAt = t
	}
	if outageID.Valid {
		e.OutageID = &outageID.Int64
	}
	return &e, nil
}

// insertEvent appends an event row inside tx, stamping it with the
// site outage it belongs to (if any is open by the time it's recorded).
func insertEvent(tx *sql.Tx, checkID int64, site string, status model.Status, message string, siteOutageID *int64) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO events (check_id, site, status, message, outage_id) VALUES (?, ?, ?, ?, ?)
	`, checkID, site, int(status), message, nullableInt64(siteOutageID))
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// DeleteEventsOlderThan removes events whose linked site outage is closed
// and ended_on is past the cleaner's retention threshold. An event with no
// outage, or one tied to a still-open SiteOutage, is left untouched — that
// outage's history isn't done accumulating yet.
func (db *DB) DeleteEventsOlderThan(threshold time.Duration) (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM events WHERE id IN (
			SELECT e.id FROM events e
			JOIN site_outages so ON so.id = e.outage_id
			WHERE so.ended_on IS NOT NULL AND so.ended_on < ?
		)
	`, time.Now().Add(-threshold))
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return res.RowsAffected()
}
