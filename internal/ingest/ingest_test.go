package ingest

import (
	"testing"

	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/storage"
)

// fakeStore models the strike/quorum state purely in memory so the
// correlator's edge-transition logic can be exercised without SQLite,
// mirroring the scenarios in spec.md §8.
type fakeStore struct {
	siteOutages map[string]*model.SiteOutage // site -> open SiteOutage
	outage      *model.Outage
	timelines   []model.Timeline
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{siteOutages: make(map[string]*model.SiteOutage)}
}

func (f *fakeStore) IngestEvent(check *model.Check, site string, status model.Status, message string) (*storage.IngestResult, error) {
	so := f.siteOutages[site]
	result := &storage.IngestResult{}

	switch status {
	case model.StatusCritical:
		if so == nil {
			f.nextID++
			so = &model.SiteOutage{ID: f.nextID, CheckID: check.ID, Site: site, FailingStrikes: 1}
			f.siteOutages[site] = so
			result.SiteOutageOpened = true
		} else {
			if so.FailingStrikes < check.FailingThreshold {
				so.FailingStrikes++
			}
			so.PassingStrikes = 0
		}
	case model.StatusOK:
		if so != nil {
			so.PassingStrikes++
			if so.PassingStrikes >= check.PassingThreshold {
				delete(f.siteOutages, site)
				result.SiteOutageClosed = true
			}
		}
	case model.StatusWarning:
		// no-op, per DESIGN.md's decided open question #2.
	}

	result.Event = model.Event{CheckID: check.ID, Site: site, Status: status, Message: message}
	result.SiteOutage = so
	return result, nil
}

func (f *fakeStore) CountConfirmedSiteOutages(checkID int64, failingThreshold int) (int, error) {
	n := 0
	for _, so := range f.siteOutages {
		if so.FailingStrikes >= failingThreshold {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ConfirmOutage(checkID int64) (*model.Outage, bool, error) {
	if f.outage != nil && f.outage.Open() {
		return f.outage, false, nil
	}
	f.nextID++
	f.outage = &model.Outage{ID: f.nextID, UUID: "outage-uuid", CheckID: checkID}
	return f.outage, true, nil
}

func (f *fakeStore) ResolveOutage(checkID int64) (*model.Outage, bool, error) {
	if f.outage == nil || !f.outage.Open() {
		return nil, false, nil
	}
	ended := true
	_ = ended
	now := f.outage.StartedOn
	f.outage.EndedOn = &now
	return f.outage, true, nil
}

func (f *fakeStore) AppendTimeline(outageID int64, kind model.TimelineKind, payload interface{}, userID *int64) (*model.Timeline, error) {
	t := model.Timeline{OutageID: outageID, Kind: kind}
	f.timelines = append(f.timelines, t)
	return &t, nil
}

type recordingDispatcher struct {
	dispatched []bool // true = opened, false = resolved
}

func (r *recordingDispatcher) Dispatch(check *model.Check, outage *model.Outage, opened bool) {
	r.dispatched = append(r.dispatched, opened)
}

func testCheck() *model.Check {
	return &model.Check{
		ID:               1,
		UUID:             "check-uuid",
		SiteThreshold:    2,
		PassingThreshold: 2,
		FailingThreshold: 2,
	}
}

func TestSingleSiteFlapNeverConfirms(t *testing.T) {
	store := newFakeStore()
	disp := &recordingDispatcher{}
	ing := New(store, disp)
	check := testCheck()

	if err := ing.Ingest(check, "eu-1", model.StatusCritical, "down"); err != nil {
		t.Fatalf("ingest critical: %v", err)
	}
	if err := ing.Ingest(check, "eu-1", model.StatusOK, ""); err != nil {
		t.Fatalf("ingest ok: %v", err)
	}
	so := store.siteOutages["eu-1"]
	if so == nil || so.PassingStrikes != 1 {
		t.Fatalf("expected open site outage with passing_strikes=1, got %+v", so)
	}

	if err := ing.Ingest(check, "eu-1", model.StatusOK, ""); err != nil {
		t.Fatalf("ingest ok 2: %v", err)
	}
	if _, open := store.siteOutages["eu-1"]; open {
		t.Fatalf("site outage should have closed after pt consecutive OKs")
	}
	if len(disp.dispatched) != 0 {
		t.Fatalf("no alert should fire for a single-site flap below quorum")
	}
}

func TestQuorumReachedAndRecovered(t *testing.T) {
	store := newFakeStore()
	disp := &recordingDispatcher{}
	ing := New(store, disp)
	check := testCheck()

	for _, site := range []string{"eu-1", "us-1"} {
		for i := 0; i < check.FailingThreshold; i++ {
			if err := ing.Ingest(check, site, model.StatusCritical, "down"); err != nil {
				t.Fatalf("ingest critical %s: %v", site, err)
			}
		}
	}

	if len(disp.dispatched) != 1 || disp.dispatched[0] != true {
		t.Fatalf("expected exactly one confirm dispatch, got %+v", disp.dispatched)
	}
	if len(store.timelines) != 1 || store.timelines[0].Kind != model.TimelineConfirmed {
		t.Fatalf("expected one confirmed timeline entry, got %+v", store.timelines)
	}

	for i := 0; i < check.PassingThreshold; i++ {
		if err := ing.Ingest(check, "us-1", model.StatusOK, ""); err != nil {
			t.Fatalf("ingest recovery: %v", err)
		}
		if i < check.PassingThreshold-1 {
			if len(disp.dispatched) != 1 {
				t.Fatalf("us-1 is only RECOVERING after %d of %d OKs; quorum must still hold, got dispatches %+v", i+1, check.PassingThreshold, disp.dispatched)
			}
			if n, err := store.CountConfirmedSiteOutages(check.ID, check.FailingThreshold); err != nil || n != 2 {
				t.Fatalf("a RECOVERING site outage must still count toward quorum, got n=%d err=%v", n, err)
			}
		}
	}

	if len(disp.dispatched) != 2 || disp.dispatched[1] != false {
		t.Fatalf("expected a resolve dispatch once quorum drops below threshold, got %+v", disp.dispatched)
	}
	if len(store.timelines) != 2 || store.timelines[1].Kind != model.TimelineResolved {
		t.Fatalf("expected a resolved timeline entry, got %+v", store.timelines)
	}
}

func TestFailingStrikesCapAtThreshold(t *testing.T) {
	store := newFakeStore()
	ing := New(store, &recordingDispatcher{})
	check := testCheck()

	for i := 0; i < 5; i++ {
		if err := ing.Ingest(check, "eu-1", model.StatusCritical, "down"); err != nil {
			t.Fatalf("ingest critical %d: %v", i, err)
		}
	}

	so := store.siteOutages["eu-1"]
	if so == nil || so.FailingStrikes != check.FailingThreshold {
		t.Fatalf("failing_strikes must not exceed failing_threshold, got %+v", so)
	}
}

func TestFailingStrikesBelowThresholdNeverOpensGlobalOutage(t *testing.T) {
	store := newFakeStore()
	ing := New(store, nil)
	check := testCheck()

	if err := ing.Ingest(check, "eu-1", model.StatusCritical, "down"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := ing.Ingest(check, "us-1", model.StatusCritical, "down"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if store.outage != nil {
		t.Fatalf("ft-1 failures on each site must not confirm a global outage")
	}
}
