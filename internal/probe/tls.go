package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

// TLS checks the remaining validity of a host's leaf certificate against
// the spec's warn/critical day thresholds.
func TLS(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.TLS == nil {
		return model.Event{}, fmt.Errorf("tls: check %s has no spec", check.UUID)
	}
	s := spec.TLS
	timeout := spec.Timeout().Duration

	port := s.Port
	if port == 0 {
		port = 443
	}
	addr := net.JoinHostPort(s.Host, fmt.Sprint(port))

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return event(check, site, model.StatusCritical, fmt.Sprintf("could not fetch certificate: %s", err)), nil
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return event(check, site, model.StatusCritical, "no certificate presented"), nil
	}

	daysRemaining := int(time.Until(certs[0].NotAfter).Hours() / 24)

	warnDays := s.WarnDays
	if warnDays == 0 {
		warnDays = 14
	}
	criticalDays := s.CriticalDays
	if criticalDays == 0 {
		criticalDays = 3
	}

	switch {
	case daysRemaining <= criticalDays:
		return event(check, site, model.StatusCritical,
			fmt.Sprintf("TLS certificate for %s expires in %d days", s.Host, daysRemaining)), nil
	case daysRemaining <= warnDays:
		return event(check, site, model.StatusWarning,
			fmt.Sprintf("TLS certificate for %s expires in %d days", s.Host, daysRemaining)), nil
	default:
		return event(check, site, model.StatusOK, ""), nil
	}
}
