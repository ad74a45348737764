// Package probe is the Prober registry: a dispatch table mapping CheckKind
// to a handler that executes one probe and returns an Event. Each handler's
// only contract is (check, site, spec) -> (Event, error); the error return
// is reserved for "the probe itself could not be run" (bad spec, dial
// setup failure before any network round-trip) and is what the scheduler
// treats as a re-inhibit signal, never for "the remote end failed", which
// is a CRITICAL Event instead.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

// Prober runs one probe against a site and reports the outcome as an Event.
type Prober func(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error)

// Registry dispatches a StaleCheck to the Prober matching its kind.
type Registry struct {
	probers map[model.CheckKind]Prober
}

// NewRegistry builds the registry with every implemented kind wired in.
func NewRegistry() *Registry {
	return &Registry{
		probers: map[model.CheckKind]Prober{
			model.KindPing:          Ping,
			model.KindHTTP:          HTTP,
			model.KindTCP:           TCP,
			model.KindUDP:           UDP,
			model.KindDNS:           DNS,
			model.KindTLS:           TLS,
			model.KindWhois:         Whois,
			model.KindDeadManSwitch: nil, // dms.Prober needs the Store; cmd/defcon-controller registers it
		},
	}
}

// Register overrides or adds a Prober for a kind. Used by cmd/defcon-controller
// to wire the dead-man-switch Prober once the Store is constructed.
func (r *Registry) Register(kind model.CheckKind, p Prober) {
	r.probers[kind] = p
}

// Dispatch runs the Prober registered for check.Kind.
func (r *Registry) Dispatch(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	p, ok := r.probers[check.Kind]
	if !ok || p == nil {
		return model.Event{}, fmt.Errorf("no prober registered for kind %q", check.Kind)
	}
	return p(ctx, check, site, spec)
}

func event(check *model.Check, site string, status model.Status, message string) model.Event {
	return model.Event{CheckID: check.ID, Site: site, Status: status, Message: message}
}

func deadlineFromTimeout(timeout time.Duration) time.Time {
	return time.Now().Add(timeout)
}
