package probe

import (
	"context"
	"fmt"
	"net"

	"github.com/jonsson/defcon/internal/model"
)

// TCP probes raw TCP connect reachability.
func TCP(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.TCP == nil {
		return model.Event{}, fmt.Errorf("tcp: check %s has no spec", check.UUID)
	}
	s := spec.TCP
	timeout := spec.Timeout().Duration

	addr := net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
	conn, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return event(check, site, model.StatusCritical, err.Error()), nil
	}
	conn.Close()
	return event(check, site, model.StatusOK, ""), nil
}
