package probe

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/jonsson/defcon/internal/model"
)

// UDP sends a datagram and checks the response for an expected content
// substring within the spec's timeout.
func UDP(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.UDP == nil {
		return model.Event{}, fmt.Errorf("udp: check %s has no spec", check.UUID)
	}
	s := spec.UDP
	timeout := spec.Timeout().Duration

	addr := net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
	conn, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, "udp", addr)
	if err != nil {
		return event(check, site, model.StatusCritical, err.Error()), nil
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	} else {
		conn.SetDeadline(deadlineFromTimeout(timeout))
	}

	if _, err := conn.Write(s.Message); err != nil {
		return event(check, site, model.StatusCritical, err.Error()), nil
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return event(check, site, model.StatusCritical, err.Error()), nil
	}

	if !bytes.Contains(buf[:n], s.Content) {
		return event(check, site, model.StatusCritical, "expected content not found"), nil
	}
	return event(check, site, model.StatusOK, ""), nil
}
