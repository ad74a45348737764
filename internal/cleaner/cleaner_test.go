package cleaner

import (
	"testing"
	"time"
)

type fakeStore struct {
	events, siteOutages, outages, checkins int64
	calls                                  int
}

func (f *fakeStore) DeleteEventsOlderThan(threshold time.Duration) (int64, error) {
	f.calls++
	return f.events, nil
}

func (f *fakeStore) DeleteSiteOutagesOlderThan(thresholdSeconds int64) (int64, error) {
	f.calls++
	return f.siteOutages, nil
}

func (f *fakeStore) DeleteOutagesOlderThan(thresholdSeconds int64) (int64, error) {
	f.calls++
	return f.outages, nil
}

func (f *fakeStore) DeleteCheckinsOlderThan(thresholdSeconds int64) (int64, error) {
	f.calls++
	return f.checkins, nil
}

func TestTickDeletesAcrossAllFourTables(t *testing.T) {
	store := &fakeStore{events: 3, siteOutages: 1, outages: 1, checkins: 2}
	c := New(store, time.Minute, 30*24*time.Hour)
	c.tick()

	if store.calls != 4 {
		t.Fatalf("expected each of the four deletions to run exactly once per tick, got %d calls", store.calls)
	}
}

func TestTickWithNothingToDeleteStillRunsAllSteps(t *testing.T) {
	store := &fakeStore{}
	c := New(store, time.Minute, 30*24*time.Hour)
	c.tick()

	if store.calls != 4 {
		t.Fatalf("tick must still invoke all deletion steps even with nothing to delete, got %d calls", store.calls)
	}
}
