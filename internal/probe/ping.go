package probe

import (
	"context"
	"fmt"
	"net"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/nettrace"
)

// Ping probes ICMP reachability via pro-bing's unprivileged mode, falling
// back to a raw-socket single echo (internal/nettrace) if pro-bing can't
// open its socket (no CAP_NET_RAW).
func Ping(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.Ping == nil {
		return model.Event{}, fmt.Errorf("ping: check %s has no spec", check.UUID)
	}
	s := spec.Ping
	timeout := spec.Timeout().Duration

	pinger, err := probing.NewPinger(s.Host)
	if err == nil {
		pinger.Count = 1
		pinger.Timeout = timeout
		pinger.SetPrivileged(false)

		if runErr := pinger.Run(); runErr == nil {
			stats := pinger.Statistics()
			if stats.PacketsRecv > 0 {
				return event(check, site, model.StatusOK, ""), nil
			}
			return event(check, site, model.StatusCritical, fmt.Sprintf("no reply from %s", s.Host)), nil
		}
	}

	ip, resolveErr := net.ResolveIPAddr("ip4", s.Host)
	if resolveErr != nil {
		return model.Event{}, fmt.Errorf("ping: resolve %s: %w", s.Host, resolveErr)
	}
	if _, err := nettrace.Echo(ip.IP, timeout); err != nil {
		return event(check, site, model.StatusCritical, fmt.Sprintf("could not ping %s: %s", s.Host, err)), nil
	}
	return event(check, site, model.StatusOK, ""), nil
}
