// Package ingest absorbs probe Events and turns them into durable outage
// state: the per-(check, site) strike machine (§4.3) and the global-outage
// correlator (§4.4) that promotes confirmed SiteOutages into a cross-site
// Outage once site_threshold is reached. The strike machine runs inside the
// Store's single transactional primitive, IngestEvent; the quorum check
// follows it as separate Store calls, outside that transaction.
package ingest

import (
	"fmt"
	"log"

	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/storage"
)

// Store is the subset of storage.DB the Ingestor needs. A narrow interface
// so tests can exercise the correlator against a fake without pulling in
// SQLite for every case; the production wiring passes a *storage.DB.
type Store interface {
	IngestEvent(check *model.Check, site string, status model.Status, message string) (*storage.IngestResult, error)
	CountConfirmedSiteOutages(checkID int64, failingThreshold int) (int, error)
	ConfirmOutage(checkID int64) (*model.Outage, bool, error)
	ResolveOutage(checkID int64) (*model.Outage, bool, error)
	AppendTimeline(outageID int64, kind model.TimelineKind, payload interface{}, userID *int64) (*model.Timeline, error)
}

var _ Store = (*storage.DB)(nil)

// Dispatcher fires alert notifications on Outage edge transitions. Kept as
// an interface so the Ingestor doesn't need to know about webhook/slack/
// pagerduty adapters directly (internal/alert implements it).
type Dispatcher interface {
	Dispatch(check *model.Check, outage *model.Outage, opened bool)
}

// Ingestor wires a Store and an alert Dispatcher into the two-stage
// strike/quorum pipeline described in §4.3/§4.4.
type Ingestor struct {
	store      Store
	dispatcher Dispatcher
}

// New builds an Ingestor. dispatcher may be nil, in which case edge
// transitions are logged but no alert is sent (used by tests that only
// care about state transitions).
func New(store Store, dispatcher Dispatcher) *Ingestor {
	return &Ingestor{store: store, dispatcher: dispatcher}
}

// Ingest absorbs one Event for (check, site): persists it, advances the
// strike counters, and re-evaluates the global Outage for check. This is
// the single entry point both the in-process Scheduler and the runner
// report endpoint call.
func (i *Ingestor) Ingest(check *model.Check, site string, status model.Status, message string) error {
	result, err := i.store.IngestEvent(check, site, status, message)
	if err != nil {
		return fmt.Errorf("ingest event: %w", err)
	}

	if result.SiteOutageOpened {
		log.Printf("site outage started: check=%s site=%s", check.UUID, site)
	}
	if result.SiteOutageClosed {
		log.Printf("site outage resolved: check=%s site=%s", check.UUID, site)
	}

	return i.correlate(check)
}

// correlate implements §4.4: count confirmed SiteOutages for check and
// open or close the global Outage on the quorum edge. A unique partial
// index on outages(check_id) WHERE ended_on IS NULL backstops the race
// between replicas described in §5; whichever ConfirmOutage call wins,
// the losing replica's call is a no-op (opened=false) and doesn't alert.
func (i *Ingestor) correlate(check *model.Check) error {
	confirmed, err := i.store.CountConfirmedSiteOutages(check.ID, check.FailingThreshold)
	if err != nil {
		return fmt.Errorf("count confirmed site outages: %w", err)
	}

	switch {
	case confirmed >= check.SiteThreshold:
		outage, opened, err := i.store.ConfirmOutage(check.ID)
		if err != nil {
			return fmt.Errorf("confirm outage: %w", err)
		}
		if opened {
			log.Printf("outage confirmed: check=%s uuid=%s", check.UUID, outage.UUID)
			if _, err := i.store.AppendTimeline(outage.ID, model.TimelineConfirmed, map[string]interface{}{
				"confirmed_sites": confirmed,
				"site_threshold":  check.SiteThreshold,
			}, nil); err != nil {
				return fmt.Errorf("append confirmed timeline: %w", err)
			}
			i.alert(check, outage, true)
		}

	default:
		outage, closed, err := i.store.ResolveOutage(check.ID)
		if err != nil {
			return fmt.Errorf("resolve outage: %w", err)
		}
		if closed {
			log.Printf("outage resolved: check=%s uuid=%s", check.UUID, outage.UUID)
			if _, err := i.store.AppendTimeline(outage.ID, model.TimelineResolved, map[string]interface{}{
				"confirmed_sites": confirmed,
				"site_threshold":  check.SiteThreshold,
			}, nil); err != nil {
				return fmt.Errorf("append resolved timeline: %w", err)
			}
			i.alert(check, outage, false)
		}
	}

	return nil
}

func (i *Ingestor) alert(check *model.Check, outage *model.Outage, opened bool) {
	if i.dispatcher == nil {
		return
	}
	i.dispatcher.Dispatch(check, outage, opened)
}
