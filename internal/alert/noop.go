package alert

import "github.com/jonsson/defcon/internal/model"

// Noop does nothing; the dispatcher skips appending a timeline entry for
// this kind, matching §4.5 step 4's "alerter.kind != noop" guard.
func Noop(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error {
	return nil
}
