// Package scheduler is the periodic tick loop described in §4.1: it finds
// (check, site) pairs that are stale for the site it represents, claims
// them through the Inhibitor, dispatches each to the Prober registry with
// an optional random jitter, and hands the resulting Event to the Ingestor.
// The same Scheduler type drives both the in-process "@controller" site
// (cmd/defcon-controller) and a remote runner's local site
// (cmd/defcon-runner), which only differ in how Store.StaleChecks and the
// Ingestor are backed (direct DB vs. runner-protocol HTTP calls).
package scheduler

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/jonsson/defcon/internal/inhibitor"
	"github.com/jonsson/defcon/internal/model"
	"golang.org/x/sync/errgroup"
)

// Store is the subset of storage.DB the Scheduler needs for stale selection.
type Store interface {
	StaleChecks(site string) ([]model.StaleCheck, error)
}

// Prober dispatches a probe by check kind; satisfied by *probe.Registry.
type Prober interface {
	Dispatch(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error)
}

// Ingestor absorbs the probe outcome; satisfied by *ingest.Ingestor.
type Ingestor interface {
	Ingest(check *model.Check, site string, status model.Status, message string) error
}

// Scheduler runs periodic ticks for a single site.
type Scheduler struct {
	store     Store
	prober    Prober
	ingestor  Ingestor
	inhibitor *inhibitor.Inhibitor

	site     string
	interval time.Duration // handler_interval: cadence between ticks
	spread   time.Duration // handler_spread: upper bound of per-probe jitter

	// maxConcurrent bounds how many probes a single tick fans out at once;
	// 0 means unbounded (SetLimit is only called when it is > 0).
	maxConcurrent int
}

// New builds a Scheduler for site, ticking every interval and spreading
// probe starts over [0, spread).
func New(store Store, prober Prober, ingestor Ingestor, inh *inhibitor.Inhibitor, site string, interval, spread time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		prober:    prober,
		ingestor:  ingestor,
		inhibitor: inh,
		site:      site,
		interval:  interval,
		spread:    spread,
	}
}

// SetMaxConcurrent caps the number of probes a tick runs at once. Leave
// unset (zero) for unbounded fan-out, matching the teacher's worker-pool
// default of sizing to the batch.
func (s *Scheduler) SetMaxConcurrent(n int) {
	s.maxConcurrent = n
}

// Run blocks, ticking every s.interval until ctx is cancelled. Every tick's
// errors are logged and swallowed — per §4.1 a tick never propagates
// failure, and the loop itself must never die.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is one pass of §4.1's per-tick procedure.
func (s *Scheduler) tick(ctx context.Context) {
	stale, err := s.store.StaleChecks(s.site)
	if err != nil {
		log.Printf("scheduler: tick failed to list stale checks for site %s: %v", s.site, err)
		return
	}
	if len(stale) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}

	for _, sc := range stale {
		sc := sc
		if s.inhibitor.Inhibited(sc.Site, sc.Check.UUID) {
			continue
		}
		s.inhibitor.Inhibit(sc.Site, sc.Check.UUID)

		g.Go(func() error {
			s.runOne(gctx, sc)
			return nil
		})
	}

	// Errors are never returned by runOne (it logs internally), so Wait
	// only blocks for completion; its error is always nil.
	_ = g.Wait()
}

// runOne executes a single stale (check, site) pair: optional jitter sleep,
// probe dispatch, ingest handoff, and inhibitor release/re-arm per §4.1
// steps 4-6.
func (s *Scheduler) runOne(ctx context.Context, sc model.StaleCheck) {
	if s.spread > 0 {
		delay := time.Duration(rand.Int63n(int64(s.spread)))
		select {
		case <-ctx.Done():
			s.inhibitor.Release(sc.Site, sc.Check.UUID)
			return
		case <-time.After(delay):
		}
	}

	ev, err := s.prober.Dispatch(ctx, &sc.Check, sc.Site, &sc.Spec)
	if err != nil {
		// Configuration failure: re-inhibit for the check's own interval so
		// it doesn't retry until the next interval boundary (§4.1 step 5).
		log.Printf("scheduler: probe error for check=%s site=%s: %v", sc.Check.UUID, sc.Site, err)
		s.inhibitor.InhibitFor(sc.Site, sc.Check.UUID, sc.Check.Interval.Duration)
		return
	}

	if err := s.ingestor.Ingest(&sc.Check, sc.Site, ev.Status, ev.Message); err != nil {
		log.Printf("scheduler: ingest failed for check=%s site=%s: %v", sc.Check.UUID, sc.Site, err)
	}

	s.inhibitor.Release(sc.Site, sc.Check.UUID)
}
