package model

import "time"

// Outage is the global, cross-site failure state for a Check. At most one
// row per check_id has EndedOn == nil.
type Outage struct {
	ID        int64      `json:"id"`
	UUID      string     `json:"uuid"`
	CheckID   int64      `json:"check_id"`
	StartedOn time.Time  `json:"started_on"`
	EndedOn   *time.Time `json:"ended_on,omitempty"`
	Comment   *string    `json:"comment,omitempty"`
}

func (o *Outage) Open() bool {
	return o.EndedOn == nil
}

// TimelineKind enumerates the journal entry kinds attached to an Outage.
type TimelineKind string

const (
	TimelineConfirmed       TimelineKind = "confirmed"
	TimelineResolved        TimelineKind = "resolved"
	TimelineAlertDispatched TimelineKind = "alert_dispatched"
	TimelineComment         TimelineKind = "comment"
)

// Timeline is an append-only journal entry attached to an Outage.
type Timeline struct {
	ID          int64        `json:"id"`
	UUID        string       `json:"uuid"`
	OutageID    int64        `json:"outage_id"`
	Kind        TimelineKind `json:"kind"`
	Content     string       `json:"content"` // JSON-encoded payload
	UserID      *int64       `json:"user_id,omitempty"`
	PublishedOn time.Time    `json:"published_on"`
}
