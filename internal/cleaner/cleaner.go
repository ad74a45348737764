// Package cleaner is the §4.6 periodic retention sweep: it deletes closed
// Events, SiteOutages and Outages (and, since they share the same
// retention horizon, stale dead-man-switch heartbeats) older than a
// configured threshold, logging a single summary line only when rows were
// actually removed.
package cleaner

import (
	"log"
	"time"
)

// Store is the subset of storage.DB the Cleaner needs.
type Store interface {
	DeleteEventsOlderThan(threshold time.Duration) (int64, error)
	DeleteSiteOutagesOlderThan(thresholdSeconds int64) (int64, error)
	DeleteOutagesOlderThan(thresholdSeconds int64) (int64, error)
	DeleteCheckinsOlderThan(thresholdSeconds int64) (int64, error)
}

// Cleaner runs the retention sweep on a fixed cadence.
type Cleaner struct {
	store     Store
	interval  time.Duration
	threshold time.Duration
}

// New builds a Cleaner that sweeps rows older than threshold every interval.
func New(store Store, interval, threshold time.Duration) *Cleaner {
	return &Cleaner{store: store, interval: interval, threshold: threshold}
}

// Run blocks, sweeping once immediately and then every c.interval, until
// stop is closed or receives a value.
func (c *Cleaner) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick is one retention sweep. The four deletions are separate Store calls,
// each committed on its own; they do not share a transaction, so a sweep
// can be applied partially. If any step fails the remaining ones still run,
// and rows a failed step left behind are picked up by the next tick.
func (c *Cleaner) tick() {
	thresholdSeconds := int64(c.threshold.Seconds())

	events, err := c.store.DeleteEventsOlderThan(c.threshold)
	if err != nil {
		log.Printf("cleaner: failed to delete old events: %v", err)
	}

	siteOutages, err := c.store.DeleteSiteOutagesOlderThan(thresholdSeconds)
	if err != nil {
		log.Printf("cleaner: failed to delete old site outages: %v", err)
	}

	outages, err := c.store.DeleteOutagesOlderThan(thresholdSeconds)
	if err != nil {
		log.Printf("cleaner: failed to delete old outages: %v", err)
	}

	checkins, err := c.store.DeleteCheckinsOlderThan(thresholdSeconds)
	if err != nil {
		log.Printf("cleaner: failed to delete old deadmanswitch checkins: %v", err)
	}

	if events > 0 || siteOutages > 0 || outages > 0 || checkins > 0 {
		log.Printf("cleaned database: events=%d site_outages=%d outages=%d deadmanswitch_logs=%d",
			events, siteOutages, outages, checkins)
	}
}
