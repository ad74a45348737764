// Package dms implements the dead-man-switch surface: the unauthenticated
// heartbeat endpoint external systems call into, and the Prober that
// compares the last heartbeat's age against the check's stale_after.
package dms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/storage"
)

// Store is the subset of storage.DB the dead-man-switch surface needs.
type Store interface {
	GetCheckByUUID(checkUUID string) (*model.Check, error)
	RecordCheckin(checkID int64) error
	LastCheckin(checkID int64) (*model.DeadManSwitchLog, error)
}

var _ Store = (*storage.DB)(nil)

// Handler serves GET /checkin/{uuid}: an unauthenticated heartbeat
// endpoint, 404 on an unknown check uuid, 200 on a recorded checkin.
func Handler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := r.PathValue("uuid")

		check, err := store.GetCheckByUUID(uuid)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if check == nil || check.Kind != model.KindDeadManSwitch {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		if err := store.RecordCheckin(check.ID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// Prober builds the dead-man-switch probe.Prober bound to store. Wired
// into the Prober registry separately from the stateless kinds since it
// needs the Store to read back the last heartbeat.
func Prober(store Store) func(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	return func(_ context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
		if spec.DeadManSwitch == nil {
			return model.Event{}, fmt.Errorf("deadmanswitch: check %s has no spec", check.UUID)
		}

		last, err := store.LastCheckin(check.ID)
		if err != nil {
			return model.Event{}, fmt.Errorf("deadmanswitch: load last checkin: %w", err)
		}
		if last == nil {
			return model.Event{}, fmt.Errorf("deadmanswitch: check %s has never checked in", check.UUID)
		}

		since := time.Since(last.CreatedAt)
		if since <= spec.DeadManSwitch.StaleAfter.Duration {
			return model.Event{CheckID: check.ID, Site: site, Status: model.StatusOK}, nil
		}
		return model.Event{
			CheckID: check.ID,
			Site:    site,
			Status:  model.StatusCritical,
			Message: fmt.Sprintf("last check in was %s ago", since.Round(time.Second)),
		}, nil
	}
}
