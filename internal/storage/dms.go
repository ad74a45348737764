package storage

import (
	"database/sql"
	"fmt"

	"github.com/jonsson/defcon/internal/model"
)

// RecordCheckin appends a heartbeat row for a dead-man-switch check. Called
// by the unauthenticated GET /checkin/{uuid} endpoint.
func (db *DB) RecordCheckin(checkID int64) error {
	_, err := db.conn.Exec(`INSERT INTO deadmanswitch_logs (check_id) VALUES (?)`, checkID)
	if err != nil {
		return fmt.Errorf("record checkin: %w", err)
	}
	return nil
}

// LastCheckin returns the most recent heartbeat for a check, or nil if none
// has ever been recorded — the dead-man-switch Prober treats that as an
// error rather than a critical status, since it means the switch was never
// armed.
func (db *DB) LastCheckin(checkID int64) (*model.DeadManSwitchLog, error) {
	row := db.conn.QueryRow(`
		SELECT id, check_id, created_at FROM deadmanswitch_logs
		WHERE check_id = ? ORDER BY created_at DESC LIMIT 1
	`, checkID)

	var log model.DeadManSwitchLog
	var createdAt string
	err := row.Scan(&log.ID, &log.CheckID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan deadmanswitch log: %w", err)
	}
	if t, err := parseTime(createdAt); err == nil {
		log.CreatedAt = t
	}
	return &log, nil
}

// DeleteCheckinsOlderThan removes dead-man-switch heartbeats past the
// cleaner's retention threshold.
func (db *DB) DeleteCheckinsOlderThan(thresholdSeconds int64) (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM deadmanswitch_logs WHERE created_at < datetime('now', ?)
	`, fmt.Sprintf("-%d seconds", thresholdSeconds))
	if err != nil {
		return 0, fmt.Errorf("delete old checkins: %w", err)
	}
	return res.RowsAffected()
}
