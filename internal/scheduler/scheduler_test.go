package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonsson/defcon/internal/inhibitor"
	"github.com/jonsson/defcon/internal/model"
)

type fakeStore struct {
	stale []model.StaleCheck
}

func (f *fakeStore) StaleChecks(site string) ([]model.StaleCheck, error) {
	var out []model.StaleCheck
	for _, sc := range f.stale {
		if sc.Site == site {
			out = append(out, sc)
		}
	}
	return out, nil
}

type fakeProber struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeProber) Dispatch(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return model.Event{CheckID: check.ID, Site: site, Status: model.StatusOK}, nil
}

type fakeIngestor struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeIngestor) Ingest(check *model.Check, site string, status model.Status, message string) error {
	f.mu.Lock()
	f.seen = append(f.seen, site+"|"+check.UUID)
	f.mu.Unlock()
	return nil
}

func TestTickDispatchesStaleChecksForSiteOnly(t *testing.T) {
	checkA := model.Check{ID: 1, UUID: "a", Interval: model.NewDuration(time.Second)}
	checkB := model.Check{ID: 2, UUID: "b", Interval: model.NewDuration(time.Second)}
	store := &fakeStore{stale: []model.StaleCheck{
		{Check: checkA, Site: "eu-1"},
		{Check: checkB, Site: "us-1"},
	}}
	prober := &fakeProber{}
	ingestor := &fakeIngestor{}
	inh := inhibitor.New()

	s := New(store, prober, ingestor, inh, "eu-1", time.Hour, 0)
	s.tick(context.Background())

	if prober.calls != 1 {
		t.Fatalf("expected exactly one dispatch for eu-1, got %d", prober.calls)
	}
	if len(ingestor.seen) != 1 || ingestor.seen[0] != "eu-1|a" {
		t.Fatalf("expected ingest for eu-1|a, got %+v", ingestor.seen)
	}
}

func TestTickSkipsInhibitedPair(t *testing.T) {
	check := model.Check{ID: 1, UUID: "a", Interval: model.NewDuration(time.Second)}
	store := &fakeStore{stale: []model.StaleCheck{{Check: check, Site: "eu-1"}}}
	prober := &fakeProber{}
	ingestor := &fakeIngestor{}
	inh := inhibitor.New()
	inh.Inhibit("eu-1", "a")

	s := New(store, prober, ingestor, inh, "eu-1", time.Hour, 0)
	s.tick(context.Background())

	if prober.calls != 0 {
		t.Fatalf("inhibited pair must not be dispatched, got %d calls", prober.calls)
	}
}

func TestProbeErrorReinhibitsForInterval(t *testing.T) {
	check := model.Check{ID: 1, UUID: "a", Interval: model.NewDuration(time.Hour)}
	store := &fakeStore{stale: []model.StaleCheck{{Check: check, Site: "eu-1"}}}
	ingestor := &fakeIngestor{}
	inh := inhibitor.New()

	s := New(store, erroringProber{}, ingestor, inh, "eu-1", time.Hour, 0)
	s.tick(context.Background())

	if !inh.Inhibited("eu-1", "a") {
		t.Fatalf("a probe configuration error must leave the pair inhibited")
	}
}

type erroringProber struct{}

func (erroringProber) Dispatch(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	return model.Event{}, errBadConfig
}

var errBadConfig = &configError{"bad host"}

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }
