package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
)

// CreateCheck inserts a Check and its site bindings in one transaction.
// Sites defaults to [@controller] per §9's documented contract when none is
// given.
func (db *DB) CreateCheck(check *model.Check, sites []string) error {
	if check.UUID == "" {
		check.UUID = uuid.NewString()
	}
	if len(sites) == 0 {
		sites = []string{model.ControllerSite}
	}

	tx, err := db.beginImmediate()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var downInterval interface{}
	if check.DownInterval != nil {
		downInterval = int64(check.DownInterval.Duration.Seconds())
	}

	res, err := tx.Exec(`
		INSERT INTO checks (uuid, name, kind, enabled, on_status_page, interval_seconds,
			down_interval_seconds, site_threshold, passing_threshold, failing_threshold,
			silent, group_id, alerter_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, check.UUID, check.Name, string(check.Kind), check.Enabled, check.OnStatusPage,
		int64(check.Interval.Duration.Seconds()), downInterval, check.SiteThreshold,
		check.PassingThreshold, check.FailingThreshold, check.Silent,
		nullableInt64(check.GroupID), nullableInt64(check.AlerterID))
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resolve inserted check id: %w", err)
	}
	check.ID = id

	for _, site := range sites {
		if _, err := tx.Exec(`INSERT INTO check_sites (check_id, site) VALUES (?, ?)`, id, site); err != nil {
			return fmt.Errorf("bind site %s: %w", site, err)
		}
	}

	return tx.Commit()
}

// UpdateCheck applies a full update to an existing check (PUT semantics).
func (db *DB) UpdateCheck(check *model.Check) error {
	var downInterval interface{}
	if check.DownInterval != nil {
		downInterval = int64(check.DownInterval.Duration.Seconds())
	}

	_, err := db.conn.Exec(`
		UPDATE checks SET name=?, enabled=?, on_status_page=?, interval_seconds=?,
			down_interval_seconds=?, site_threshold=?, passing_threshold=?,
			failing_threshold=?, silent=?, group_id=?, alerter_id=?, updated_at=CURRENT_TIMESTAMP
		WHERE uuid=?
	`, check.Name, check.Enabled, check.OnStatusPage, int64(check.Interval.Duration.Seconds()),
		downInterval, check.SiteThreshold, check.PassingThreshold, check.FailingThreshold,
		check.Silent, nullableInt64(check.GroupID), nullableInt64(check.AlerterID), check.UUID)
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}
	return nil
}

// SetCheckEnabled soft-disables/enables a check (DELETE without ?delete=true).
func (db *DB) SetCheckEnabled(checkUUID string, enabled bool) error {
	_, err := db.conn.Exec(`UPDATE checks SET enabled=?, updated_at=CURRENT_TIMESTAMP WHERE uuid=?`, enabled, checkUUID)
	return err
}

// DeleteCheck hard-deletes a check and cascades to its sites/specs/events/outages.
func (db *DB) DeleteCheck(checkUUID string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM checks WHERE uuid=?`, checkUUID)
	if err != nil {
		return false, fmt.Errorf("delete check: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetCheckByUUID returns a check by its public identifier, or nil if none.
func (db *DB) GetCheckByUUID(checkUUID string) (*model.Check, error) {
	row := db.conn.QueryRow(`
		SELECT id, uuid, name, kind, enabled, on_status_page, interval_seconds,
			down_interval_seconds, site_threshold, passing_threshold, failing_threshold,
			silent, group_id, alerter_id, created_at, updated_at
		FROM checks WHERE uuid = ?
	`, checkUUID)
	return scanCheck(row)
}

// GetCheckByID is the internal accessor used when a check is already
// identified by its primary key (e.g. from a foreign key join).
func (db *DB) GetCheckByID(id int64) (*model.Check, error) {
	row := db.conn.QueryRow(`
		SELECT id, uuid, name, kind, enabled, on_status_page, interval_seconds,
			down_interval_seconds, site_threshold, passing_threshold, failing_threshold,
			silent, group_id, alerter_id, created_at, updated_at
		FROM checks WHERE id = ?
	`, id)
	return scanCheck(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheck(row rowScanner) (*model.Check, error) {
	var c model.Check
	var kind string
	var intervalSeconds int64
	var downIntervalSeconds sql.NullInt64
	var groupID, alerterID sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.UUID, &c.Name, &kind, &c.Enabled, &c.OnStatusPage, &intervalSeconds,
		&downIntervalSeconds, &c.SiteThreshold, &c.PassingThreshold, &c.FailingThreshold,
		&c.Silent, &groupID, &alerterID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan check: %w", err)
	}

	c.Kind = model.CheckKind(kind)
	c.Interval = model.NewDuration(time.Duration(intervalSeconds) * time.Second)
	if downIntervalSeconds.Valid {
		d := model.NewDuration(time.Duration(downIntervalSeconds.Int64) * time.Second)
		c.DownInterval = &d
	}
	if groupID.Valid {
		c.GroupID = &groupID.Int64
	}
	if alerterID.Valid {
		c.AlerterID = &alerterID.Int64
	}
	if t, err := parseTime(createdAt); err == nil {
		c.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}

// ListChecks returns every check, optionally filtered by group.
func (db *DB) ListChecks(groupUUID string) ([]model.Check, error) {
	query := `
		SELECT c.id, c.uuid, c.name, c.kind, c.enabled, c.on_status_page, c.interval_seconds,
			c.down_interval_seconds, c.site_threshold, c.passing_threshold, c.failing_threshold,
			c.silent, c.group_id, c.alerter_id, c.created_at, c.updated_at
		FROM checks c`
	args := []interface{}{}
	if groupUUID != "" {
		query += ` JOIN groups g ON g.id = c.group_id WHERE g.uuid = ?`
		args = append(args, groupUUID)
	}
	query += ` ORDER BY c.name`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var checks []model.Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, *c)
	}
	return checks, rows.Err()
}

// Sites returns the site bindings for a check.
func (db *DB) Sites(checkID int64) ([]string, error) {
	rows, err := db.conn.Query(`SELECT site FROM check_sites WHERE check_id = ? ORDER BY site`, checkID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// UpdateSites replaces a check's site bindings.
func (db *DB) UpdateSites(checkID int64, sites []string) error {
	tx, err := db.beginImmediate()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM check_sites WHERE check_id = ?`, checkID); err != nil {
		return err
	}
	for _, site := range sites {
		if _, err := tx.Exec(`INSERT INTO check_sites (check_id, site) VALUES (?, ?)`, checkID, site); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StaleChecks implements the §4.1 stale-selection query: a check is stale
// for a site iff it's enabled, bound to that site, and has no event newer
// than now - interval (or now - down_interval while an open global outage
// exists for it — the down_interval scope decision in DESIGN.md).
func (db *DB) StaleChecks(site string) ([]model.StaleCheck, error) {
	rows, err := db.conn.Query(`
		SELECT c.id, c.uuid, c.name, c.kind, c.enabled, c.on_status_page, c.interval_seconds,
			c.down_interval_seconds, c.site_threshold, c.passing_threshold, c.failing_threshold,
			c.silent, c.group_id, c.alerter_id, c.created_at, c.updated_at,
			cs.site,
			(SELECT MAX(e.created_at) FROM events e WHERE e.check_id = c.id AND e.site = cs.site) AS last_event,
			EXISTS(SELECT 1 FROM outages o WHERE o.check_id = c.id AND o.ended_on IS NULL) AS has_open_outage
		FROM checks c
		JOIN check_sites cs ON cs.check_id = c.id
		WHERE c.enabled = 1 AND cs.site = ?
	`, site)
	if err != nil {
		return nil, fmt.Errorf("query stale checks: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []model.StaleCheck
	for rows.Next() {
		var c model.Check
		var kind string
		var intervalSeconds int64
		var downIntervalSeconds sql.NullInt64
		var groupID, alerterID sql.NullInt64
		var createdAt, updatedAt string
		var siteCol string
		var lastEvent sql.NullString
		var hasOpenOutage bool

		err := rows.Scan(&c.ID, &c.UUID, &c.Name, &kind, &c.Enabled, &c.OnStatusPage, &intervalSeconds,
			&downIntervalSeconds, &c.SiteThreshold, &c.PassingThreshold, &c.FailingThreshold,
			&c.Silent, &groupID, &alerterID, &createdAt, &updatedAt, &siteCol,
			&lastEvent, &hasOpenOutage)
		if err != nil {
			return nil, fmt.Errorf("scan stale check: %w", err)
		}

		c.Kind = model.CheckKind(kind)
		c.Interval = model.NewDuration(time.Duration(intervalSeconds) * time.Second)
		if downIntervalSeconds.Valid {
			d := model.NewDuration(time.Duration(downIntervalSeconds.Int64) * time.Second)
			c.DownInterval = &d
		}
		if groupID.Valid {
			c.GroupID = &groupID.Int64
		}
		if alerterID.Valid {
			c.AlerterID = &alerterID.Int64
		}
		if t, err := parseTime(createdAt); err == nil {
			c.CreatedAt = t
		}
		if t, err := parseTime(updatedAt); err == nil {
			c.UpdatedAt = t
		}

		interval := c.EffectiveInterval(hasOpenOutage)
		stale := true
		if lastEvent.Valid {
			if t, err := parseTime(lastEvent.String); err == nil {
				stale = now.Sub(t) >= interval
			}
		}
		if !stale {
			continue
		}

		spec, err := db.loadSpec(c.ID, c.Kind)
		if err != nil {
			return nil, fmt.Errorf("load spec for check %s: %w", c.UUID, err)
		}

		out = append(out, model.StaleCheck{Check: c, Site: site, Spec: *spec})
	}
	return out, rows.Err()
}
