package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
)

// IngestResult reports the state transitions a single IngestEvent call
// produced, so the caller (internal/ingest) can log site outage openings and
// closings.
type IngestResult struct {
	Event           model.Event
	SiteOutage      *model.SiteOutage
	SiteOutageOpened bool
	SiteOutageClosed bool
}

// IngestEvent is the Store's single transactional primitive: it records a
// probe Event and folds it into the per-(check,site) strike counters inside
// one BEGIN IMMEDIATE transaction, giving the two-stage strike machine
// described in §4.3 its atomicity guarantee. It never touches the global
// Outage — that correlation (counting confirmed SiteOutages against
// site_threshold) is internal/ingest's job, done after this transaction
// commits with CountConfirmedSiteOutages, ConfirmOutage and ResolveOutage,
// which run as separate statements outside any transaction.
func (db *DB) IngestEvent(check *model.Check, site string, status model.Status, message string) (*IngestResult, error) {
	tx, err := db.beginImmediate()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	so, err := getOpenSiteOutage(tx, check.ID, site)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{}

	switch status {
	case model.StatusCritical:
		if so == nil {
			so = &model.SiteOutage{UUID: uuid.NewString(), CheckID: check.ID, Site: site, FailingStrikes: 1}
			if err := insertSiteOutage(tx, so); err != nil {
				return nil, err
			}
			result.SiteOutageOpened = true
		} else {
			if so.FailingStrikes < check.FailingThreshold || so.PassingStrikes > 0 {
				if so.FailingStrikes < check.FailingThreshold {
					so.FailingStrikes++
				}
				so.PassingStrikes = 0
				if err := updateSiteOutageStrikes(tx, so); err != nil {
					return nil, err
				}
			}
		}

	case model.StatusOK:
		if so != nil {
			so.PassingStrikes++
			if so.PassingStrikes >= check.PassingThreshold {
				if err := closeSiteOutage(tx, so); err != nil {
					return nil, err
				}
				result.SiteOutageClosed = true
			} else if err := updateSiteOutageStrikes(tx, so); err != nil {
				return nil, err
			}
		}

	case model.StatusWarning:
		// WARNING neither opens nor advances a SiteOutage's strike counters
		// (see DESIGN.md's Decided Open Questions #2); it's recorded as a
		// plain event, tagged to whatever SiteOutage is currently open.
	}

	var siteOutageID *int64
	if so != nil {
		siteOutageID = &so.ID
	}

	eventID, err := insertEvent(tx, check.ID, site, status, message, siteOutageID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ingest: %w", err)
	}

	result.Event = model.Event{ID: eventID, CheckID: check.ID, Site: site, Status: status, Message: message, OutageID: siteOutageID}
	result.SiteOutage = so
	return result, nil
}

func getOpenSiteOutage(tx *sql.Tx, checkID int64, site string) (*model.SiteOutage, error) {
	row := tx.QueryRow(`
		SELECT id, uuid, check_id, site, passing_strikes, failing_strikes, started_on, ended_on
		FROM site_outages WHERE check_id = ? AND site = ? AND ended_on IS NULL
	`, checkID, site)
	return scanSiteOutage(row)
}

func scanSiteOutage(row rowScanner) (*model.SiteOutage, error) {
	var so model.SiteOutage
	var startedOn string
	var endedOn sql.NullString
	err := row.Scan(&so.ID, &so.UUID, &so.CheckID, &so.Site, &so.PassingStrikes, &so.FailingStrikes, &startedOn, &endedOn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan site outage: %w", err)
	}
	if t, err := parseTime(startedOn); err == nil {
		so.StartedOn = t
	}
	if endedOn.Valid {
		if t, err := parseTime(endedOn.String); err == nil {
			so.EndedOn = &t
		}
	}
	return &so, nil
}

func insertSiteOutage(tx *sql.Tx, so *model.SiteOutage) error {
	res, err := tx.Exec(`
		INSERT INTO site_outages (uuid, check_id, site, passing_strikes, failing_strikes) VALUES (?, ?, ?, ?, ?)
	`, so.UUID, so.CheckID, so.Site, so.PassingStrikes, so.FailingStrikes)
	if err != nil {
		return fmt.Errorf("insert site outage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	so.ID = id
	return nil
}

func updateSiteOutageStrikes(tx *sql.Tx, so *model.SiteOutage) error {
	_, err := tx.Exec(`UPDATE site_outages SET passing_strikes=?, failing_strikes=? WHERE id=?`,
		so.PassingStrikes, so.FailingStrikes, so.ID)
	return err
}

func closeSiteOutage(tx *sql.Tx, so *model.SiteOutage) error {
	_, err := tx.Exec(`UPDATE site_outages SET ended_on=CURRENT_TIMESTAMP, passing_strikes=?, failing_strikes=0 WHERE id=?`,
		so.PassingStrikes, so.ID)
	return err
}

// CountConfirmedSiteOutages counts open SiteOutages for a check whose
// failing_strikes has reached failing_threshold — the quorum input for
// internal/ingest's global Outage correlator (invariant #4).
func (db *DB) CountConfirmedSiteOutages(checkID int64, failingThreshold int) (int, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM site_outages
		WHERE check_id = ? AND ended_on IS NULL AND failing_strikes >= ?
	`, checkID, failingThreshold).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed site outages: %w", err)
	}
	return n, nil
}

// GetSiteOutageByUUID returns a single SiteOutage by its public identifier.
func (db *DB) GetSiteOutageByUUID(siteOutageUUID string) (*model.SiteOutage, error) {
	row := db.conn.QueryRow(`
		SELECT id, uuid, check_id, site, passing_strikes, failing_strikes, started_on, ended_on
		FROM site_outages WHERE uuid = ?
	`, siteOutageUUID)
	return scanSiteOutage(row)
}

// ListAllSiteOutages returns SiteOutages across every check for
// GET /api/sites/outages, open ones first.
func (db *DB) ListAllSiteOutages() ([]model.SiteOutage, error) {
	rows, err := db.conn.Query(`
		SELECT id, uuid, check_id, site, passing_strikes, failing_strikes, started_on, ended_on
		FROM site_outages ORDER BY ended_on IS NOT NULL, started_on DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all site outages: %w", err)
	}
	defer rows.Close()

	var out []model.SiteOutage
	for rows.Next() {
		so, err := scanSiteOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *so)
	}
	return out, rows.Err()
}

// EventsBySiteOutage returns the Events tagged to a single SiteOutage,
// newest first, for GET /api/sites/outages/{uuid}/events.
func (db *DB) EventsBySiteOutage(siteOutageID int64) ([]model.Event, error) {
	rows, err := db.conn.Query(`
		SELECT id, check_id, site, status, message, created_at, outage_id
		FROM events WHERE outage_id = ? ORDER BY created_at DESC
	`, siteOutageID)
	if err != nil {
		return nil, fmt.Errorf("list site outage events: %w", err)
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

// ListSiteOutages returns a check's SiteOutages, open ones first.
func (db *DB) ListSiteOutages(checkID int64) ([]model.SiteOutage, error) {
	rows, err := db.conn.Query(`
		SELECT id, uuid, check_id, site, passing_strikes, failing_strikes, started_on, ended_on
		FROM site_outages WHERE check_id = ? ORDER BY ended_on IS NOT NULL, started_on DESC
	`, checkID)
	if err != nil {
		return nil, fmt.Errorf("list site outages: %w", err)
	}
	defer rows.Close()

	var out []model.SiteOutage
	for rows.Next() {
		so, err := scanSiteOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *so)
	}
	return out, rows.Err()
}

// DeleteSiteOutagesOlderThan removes closed SiteOutages past the cleaner's
// retention threshold.
func (db *DB) DeleteSiteOutagesOlderThan(thresholdSeconds int64) (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM site_outages WHERE ended_on IS NOT NULL AND ended_on < datetime('now', ?)
	`, fmt.Sprintf("-%d seconds", thresholdSeconds))
	if err != nil {
		return 0, fmt.Errorf("delete old site outages: %w", err)
	}
	return res.RowsAffected()
}
