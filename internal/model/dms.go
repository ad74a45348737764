package model

import "time"

// DeadManSwitchLog is an append-only heartbeat row written by GET /checkin/{uuid}.
type DeadManSwitchLog struct {
	ID        int64     `json:"id"`
	CheckID   int64     `json:"check_id"`
	CreatedAt time.Time `json:"created_at"`
}
