package model

import "time"

// SiteOutage is the per-(check, site) strike-counter state described in
// §4.3. At most one row per (check_id, site) has EndedOn == nil.
type SiteOutage struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	CheckID        int64      `json:"check_id"`
	Site           string     `json:"site"`
	PassingStrikes int        `json:"passing_strikes"`
	FailingStrikes int        `json:"failing_strikes"`
	StartedOn      time.Time  `json:"started_on"`
	EndedOn        *time.Time `json:"ended_on,omitempty"`
}

// Open reports whether this SiteOutage is still active.
func (o *SiteOutage) Open() bool {
	return o.EndedOn == nil
}

// Confirmed implements invariant #4: a SiteOutage counts toward the global
// quorum once failing_strikes has reached the check's failing_threshold and
// it has not yet accumulated passing_threshold consecutive recoveries.
func (o *SiteOutage) Confirmed(check *Check) bool {
	return o.Open() && o.FailingStrikes >= check.FailingThreshold && o.PassingStrikes < check.PassingThreshold
}
