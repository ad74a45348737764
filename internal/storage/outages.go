package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
)

// GetOpenOutage returns the open global Outage for a check, or nil.
func (db *DB) GetOpenOutage(checkID int64) (*model.Outage, error) {
	row := db.conn.QueryRow(`
		SELECT id, uuid, check_id, started_on, ended_on, comment FROM outages
		WHERE check_id = ? AND ended_on IS NULL
	`, checkID)
	return scanOutage(row)
}

func scanOutage(row rowScanner) (*model.Outage, error) {
	var o model.Outage
	var startedOn string
	var endedOn, comment sql.NullString
	err := row.Scan(&o.ID, &o.UUID, &o.CheckID, &startedOn, &endedOn, &comment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan outage: %w", err)
	}
	if t, err := parseTime(startedOn); err == nil {
		o.StartedOn = t
	}
	if endedOn.Valid {
		if t, err := parseTime(endedOn.String); err == nil {
			o.EndedOn = &t
		}
	}
	if comment.Valid {
		o.Comment = &comment.String
	}
	return &o, nil
}

// ConfirmOutage opens a global Outage for a check if one isn't already open,
// implementing invariant #2 (the partial unique index backstops the race).
// Returns the Outage and whether this call actually opened it.
func (db *DB) ConfirmOutage(checkID int64) (*model.Outage, bool, error) {
	existing, err := db.GetOpenOutage(checkID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	o := &model.Outage{UUID: uuid.NewString(), CheckID: checkID}
	res, err := db.conn.Exec(`INSERT OR IGNORE INTO outages (uuid, check_id) VALUES (?, ?)`, o.UUID, checkID)
	if err != nil {
		return nil, false, fmt.Errorf("insert outage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		// Another writer opened the Outage between the read above and this
		// insert; the unique index made ours a no-op.
		existing, err := db.GetOpenOutage(checkID)
		return existing, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	o.ID = id
	return o, true, nil
}

// ResolveOutage closes the open global Outage for a check, if any. Returns
// whether a row was actually closed (so the caller only alerts once).
func (db *DB) ResolveOutage(checkID int64) (*model.Outage, bool, error) {
	existing, err := db.GetOpenOutage(checkID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, nil
	}

	res, err := db.conn.Exec(`UPDATE outages SET ended_on=CURRENT_TIMESTAMP WHERE id=? AND ended_on IS NULL`, existing.ID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve outage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	return existing, n > 0, nil
}

// ListOutages returns a check's Outages, open first.
func (db *DB) ListOutages(checkID int64) ([]model.Outage, error) {
	rows, err := db.conn.Query(`
		SELECT id, uuid, check_id, started_on, ended_on, comment FROM outages
		WHERE check_id = ? ORDER BY ended_on IS NOT NULL, started_on DESC
	`, checkID)
	if err != nil {
		return nil, fmt.Errorf("list outages: %w", err)
	}
	defer rows.Close()

	var out []model.Outage
	for rows.Next() {
		o, err := scanOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ListAllOutages returns Outages across every check for GET /api/outages,
// optionally scoped to [from, to) by started_on.
func (db *DB) ListAllOutages(from, to *time.Time) ([]model.Outage, error) {
	query := `SELECT id, uuid, check_id, started_on, ended_on, comment FROM outages WHERE 1=1`
	var args []interface{}
	if from != nil {
		query += ` AND started_on >= ?`
		args = append(args, from.UTC().Format("2006-01-02T15:04:05"))
	}
	if to != nil {
		query += ` AND started_on < ?`
		args = append(args, to.UTC().Format("2006-01-02T15:04:05"))
	}
	query += ` ORDER BY ended_on IS NOT NULL, started_on DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all outages: %w", err)
	}
	defer rows.Close()

	var out []model.Outage
	for rows.Next() {
		o, err := scanOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// GetOutageByUUID returns a single Outage by its public identifier.
func (db *DB) GetOutageByUUID(outageUUID string) (*model.Outage, error) {
	row := db.conn.QueryRow(`
		SELECT id, uuid, check_id, started_on, ended_on, comment FROM outages WHERE uuid = ?
	`, outageUUID)
	return scanOutage(row)
}

// SetOutageComment attaches an operator comment to an Outage.
func (db *DB) SetOutageComment(outageUUID, comment string) error {
	_, err := db.conn.Exec(`UPDATE outages SET comment=? WHERE uuid=?`, comment, outageUUID)
	return err
}

// DeleteOutagesOlderThan removes closed Outages (and cascades to their
// Timelines) past the cleaner's retention threshold.
func (db *DB) DeleteOutagesOlderThan(thresholdSeconds int64) (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM outages WHERE ended_on IS NOT NULL AND ended_on < datetime('now', ?)
	`, fmt.Sprintf("-%d seconds", thresholdSeconds))
	if err != nil {
		return 0, fmt.Errorf("delete old outages: %w", err)
	}
	return res.RowsAffected()
}
