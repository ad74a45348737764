// Package model holds the persistent entities of the outage-detection engine:
// checks and their site bindings, probe specs, events, site outages, global
// outages, timeline entries, alerters, groups, users and dead-man-switch logs.
package model

import "time"

// CheckKind identifies which Prober a Check dispatches to.
type CheckKind string

const (
	KindPing          CheckKind = "ping"
	KindHTTP          CheckKind = "http"
	KindTCP           CheckKind = "tcp"
	KindUDP           CheckKind = "udp"
	KindDNS           CheckKind = "dns"
	KindTLS           CheckKind = "tls"
	KindWhois         CheckKind = "whois"
	KindDeadManSwitch CheckKind = "deadmanswitch"
)

// Status is an Event outcome.
type Status int

const (
	StatusOK       Status = 0
	StatusCritical Status = 1
	StatusWarning  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCritical:
		return "critical"
	case StatusWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// ControllerSite is the reserved site slug for the in-process runner.
const ControllerSite = "@controller"

// Check is a named probe definition bound to one or more sites.
type Check struct {
	ID               int64      `json:"id"`
	UUID             string     `json:"uuid"`
	Name             string     `json:"name"`
	Kind             CheckKind  `json:"kind"`
	Enabled          bool       `json:"enabled"`
	OnStatusPage     bool       `json:"on_status_page"`
	Interval         Duration   `json:"interval"`
	DownInterval     *Duration  `json:"down_interval,omitempty"`
	SiteThreshold    int        `json:"site_threshold"`
	PassingThreshold int        `json:"passing_threshold"`
	FailingThreshold int        `json:"failing_threshold"`
	Silent           bool       `json:"silent"`
	GroupID          *int64     `json:"group_id,omitempty"`
	AlerterID        *int64     `json:"alerter_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EffectiveInterval returns DownInterval when the check has an open global
// outage, else Interval. See DESIGN.md for the down_interval scope decision.
func (c *Check) EffectiveInterval(hasOpenOutage bool) time.Duration {
	if hasOpenOutage && c.DownInterval != nil {
		return c.DownInterval.Duration
	}
	return c.Interval.Duration
}

// StaleCheck is a (check, site) pair returned by the stale-selection query,
// paired with its kind-specific spec for dispatch to the Prober registry.
type StaleCheck struct {
	Check Check
	Site  string
	Spec  Spec
}
