package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
)

// AppendTimeline adds a journal entry to an Outage's append-only timeline.
// content is marshaled to JSON so callers can attach structured payloads
// (e.g. which alerter dispatched, which sites confirmed) per entry kind.
func (db *DB) AppendTimeline(outageID int64, kind model.TimelineKind, payload interface{}, userID *int64) (*model.Timeline, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode timeline payload: %w", err)
	}

	t := &model.Timeline{UUID: uuid.NewString(), OutageID: outageID, Kind: kind, Content: string(content), UserID: userID}
	res, err := db.conn.Exec(`
		INSERT INTO timelines (uuid, outage_id, kind, content, user_id) VALUES (?, ?, ?, ?, ?)
	`, t.UUID, t.OutageID, string(t.Kind), t.Content, nullableInt64(userID))
	if err != nil {
		return nil, fmt.Errorf("insert timeline: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	t.ID = id
	return t, nil
}

// ListTimeline returns an Outage's journal, oldest first.
func (db *DB) ListTimeline(outageID int64) ([]model.Timeline, error) {
	rows, err := db.conn.Query(`
		SELECT id, uuid, outage_id, kind, content, user_id, published_on
		FROM timelines WHERE outage_id = ? ORDER BY published_on ASC
	`, outageID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	var out []model.Timeline
	for rows.Next() {
		var t model.Timeline
		var kind, publishedOn string
		var userID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.UUID, &t.OutageID, &kind, &t.Content, &userID, &publishedOn); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		t.Kind = model.TimelineKind(kind)
		if userID.Valid {
			t.UserID = &userID.Int64
		}
		if pt, err := parseTime(publishedOn); err == nil {
			t.PublishedOn = pt
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
