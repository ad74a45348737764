package alert

import (
	"testing"

	"github.com/jonsson/defcon/internal/model"
)

type fakeStore struct {
	alertersByID   map[int64]*model.Alerter
	alertersByUUID map[string]*model.Alerter
	settings       map[string]string
	timelines      []model.Timeline
	events         []model.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		alertersByID:   map[int64]*model.Alerter{},
		alertersByUUID: map[string]*model.Alerter{},
		settings:       map[string]string{},
	}
}

func (f *fakeStore) GetAlerterByID(id int64) (*model.Alerter, error) {
	return f.alertersByID[id], nil
}

func (f *fakeStore) GetAlerterByUUID(uuid string) (*model.Alerter, error) {
	return f.alertersByUUID[uuid], nil
}

func (f *fakeStore) GetSetting(key string) (string, error) {
	return f.settings[key], nil
}

func (f *fakeStore) RecentEvents(checkID int64, site string, limit int) ([]model.Event, error) {
	return f.events, nil
}

func (f *fakeStore) AppendTimeline(outageID int64, kind model.TimelineKind, payload interface{}, userID *int64) (*model.Timeline, error) {
	t := model.Timeline{OutageID: outageID, Kind: kind}
	f.timelines = append(f.timelines, t)
	return &t, nil
}

func TestDispatchSkipsSilentChecks(t *testing.T) {
	store := newFakeStore()
	var called bool
	d := New(store)
	d.adapters[model.AlerterWebhook] = func(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error {
		called = true
		return nil
	}

	check := &model.Check{ID: 1, UUID: "c1", Silent: true, AlerterID: int64Ptr(1)}
	store.alertersByID[1] = &model.Alerter{ID: 1, Kind: model.AlerterWebhook, URL: "http://example.invalid"}

	d.Dispatch(check, &model.Outage{ID: 1, UUID: "o1"}, true)

	if called {
		t.Fatalf("a silent check must never invoke an adapter")
	}
	if len(store.timelines) != 0 {
		t.Fatalf("a silent check must not append a timeline entry")
	}
}

func TestDispatchFallsBackToConfiguredFallbackAlerter(t *testing.T) {
	store := newFakeStore()
	store.settings[SettingFallbackAlerter] = "fallback-uuid"
	store.alertersByUUID["fallback-uuid"] = &model.Alerter{ID: 2, UUID: "fallback-uuid", Kind: model.AlerterWebhook, URL: "http://example.invalid"}

	var gotAlerterID int64
	d := New(store)
	d.adapters[model.AlerterWebhook] = func(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error {
		gotAlerterID = alerter.ID
		return nil
	}

	check := &model.Check{ID: 1, UUID: "c1"} // no AlerterID bound
	outage := &model.Outage{ID: 1, UUID: "o1"}
	d.Dispatch(check, outage, true)

	if gotAlerterID != 2 {
		t.Fatalf("expected fallback alerter (id=2) to be used, got %d", gotAlerterID)
	}
	if len(store.timelines) != 1 || store.timelines[0].Kind != model.TimelineAlertDispatched {
		t.Fatalf("expected one alert_dispatched timeline entry, got %+v", store.timelines)
	}
}

func TestDispatchNoopDoesNotAppendTimeline(t *testing.T) {
	store := newFakeStore()
	store.alertersByID[1] = &model.Alerter{ID: 1, Kind: model.AlerterNoop}
	check := &model.Check{ID: 1, UUID: "c1", AlerterID: int64Ptr(1)}

	d := New(store)
	d.Dispatch(check, &model.Outage{ID: 1, UUID: "o1"}, true)

	if len(store.timelines) != 0 {
		t.Fatalf("noop dispatch must not append a timeline entry, got %+v", store.timelines)
	}
}

func TestDispatchWithNoAlerterConfiguredIsANoop(t *testing.T) {
	store := newFakeStore()
	check := &model.Check{ID: 1, UUID: "c1"}

	d := New(store)
	d.Dispatch(check, &model.Outage{ID: 1, UUID: "o1"}, true)

	if len(store.timelines) != 0 {
		t.Fatalf("no alerter configured and no fallback set means no dispatch at all")
	}
}

func int64Ptr(n int64) *int64 { return &n }
