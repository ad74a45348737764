// Package alert is the §4.5 alerter dispatcher: it resolves the Alerter
// bound to a Check (or the controller's fallback), invokes the adapter
// matching its kind, and appends a timeline entry on success. Dispatch is
// fire-and-forget — adapter failures are logged and never retried
// automatically, so alerting is at-least-once, never exactly-once, per
// §5's ordering guarantees.
package alert

import (
	"fmt"
	"log"

	"github.com/jonsson/defcon/internal/model"
)

// SettingFallbackAlerter is the settings key the controller's configured
// fallback alerter UUID is stored under (ALERTER_FALLBACK at startup).
const SettingFallbackAlerter = "alerter_fallback"

// Store is the subset of storage.DB the dispatcher needs.
type Store interface {
	GetAlerterByID(id int64) (*model.Alerter, error)
	GetAlerterByUUID(alerterUUID string) (*model.Alerter, error)
	GetSetting(key string) (string, error)
	RecentEvents(checkID int64, site string, limit int) ([]model.Event, error)
	AppendTimeline(outageID int64, kind model.TimelineKind, payload interface{}, userID *int64) (*model.Timeline, error)
}

// Adapter sends one notification for an Outage edge transition. opened is
// true on confirm, false on resolve; lastEvent is the most recent Event
// recorded for the check (any site), used for status/message context.
type Adapter func(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error

// Dispatcher implements ingest.Dispatcher.
type Dispatcher struct {
	store    Store
	adapters map[model.AlerterKind]Adapter
}

// New builds a Dispatcher with the standard webhook/slack/pagerduty/noop
// adapter table wired in.
func New(store Store) *Dispatcher {
	return &Dispatcher{
		store: store,
		adapters: map[model.AlerterKind]Adapter{
			model.AlerterWebhook:   Webhook,
			model.AlerterSlack:     Slack,
			model.AlerterPagerDuty: PagerDuty,
			model.AlerterNoop:      Noop,
		},
	}
}

// Dispatch implements ingest.Dispatcher: resolve the alerter, invoke its
// adapter, and append a timeline entry on success. Errors are logged, not
// returned — callers never block outage correlation on alert delivery.
func (d *Dispatcher) Dispatch(check *model.Check, outage *model.Outage, opened bool) {
	if check.Silent {
		return
	}

	alerter, err := d.resolveAlerter(check)
	if err != nil {
		log.Printf("alert: resolve alerter for check=%s failed: %v", check.UUID, err)
		return
	}
	if alerter == nil {
		return
	}

	adapter, ok := d.adapters[alerter.Kind]
	if !ok {
		log.Printf("alert: no adapter registered for kind %q", alerter.Kind)
		return
	}

	lastEvent := d.lastEvent(check)

	if err := adapter(alerter, check, outage, lastEvent, opened); err != nil {
		log.Printf("alert: dispatch via %s alerter %s failed for check=%s: %v", alerter.Kind, alerter.Name, check.UUID, err)
		return
	}

	if alerter.Kind == model.AlerterNoop {
		return
	}

	if _, err := d.store.AppendTimeline(outage.ID, model.TimelineAlertDispatched, map[string]interface{}{
		"alerter": map[string]string{"kind": string(alerter.Kind), "name": alerter.Name},
	}, nil); err != nil {
		log.Printf("alert: append timeline for check=%s failed: %v", check.UUID, err)
	}
}

// resolveAlerter implements §4.5 step 2: the check's configured alerter,
// else the controller's configured fallback, else none.
func (d *Dispatcher) resolveAlerter(check *model.Check) (*model.Alerter, error) {
	if check.AlerterID != nil {
		a, err := d.store.GetAlerterByID(*check.AlerterID)
		if err != nil {
			return nil, fmt.Errorf("load check alerter: %w", err)
		}
		if a != nil {
			return a, nil
		}
	}

	fallbackUUID, err := d.store.GetSetting(SettingFallbackAlerter)
	if err != nil {
		return nil, fmt.Errorf("load fallback alerter setting: %w", err)
	}
	if fallbackUUID == "" {
		return nil, nil
	}

	a, err := d.store.GetAlerterByUUID(fallbackUUID)
	if err != nil {
		return nil, fmt.Errorf("load fallback alerter: %w", err)
	}
	return a, nil
}

func (d *Dispatcher) lastEvent(check *model.Check) *model.Event {
	events, err := d.store.RecentEvents(check.ID, "", 1)
	if err != nil || len(events) == 0 {
		return nil
	}
	return &events[0]
}
