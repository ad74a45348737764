package model

import "time"

// Event is a single probe outcome for a (check, site) pair. Append-only.
type Event struct {
	ID        int64     `json:"id"`
	CheckID   int64     `json:"check_id"`
	Site      string    `json:"site"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	OutageID  *int64    `json:"outage_id,omitempty"`
}
