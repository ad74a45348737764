package probe

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/jonsson/defcon/internal/model"
)

// DefaultResolver is the controller-wide fallback DNS resolver address
// (DNS_RESOLVER, default "1.1.1.1") used whenever a DNSSpec omits its own.
var DefaultResolver = "1.1.1.1"

// DNS resolves spec.Record for spec.Name against spec.Resolver (or
// DefaultResolver) and compares it to spec.Expected. No third-party DNS
// client ships anywhere in the retrieval pack, so this goes through
// net.Resolver's custom-Dial hook to target a specific resolver — the
// stdlib covers every record type the spec supports.
func DNS(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.DNS == nil {
		return model.Event{}, fmt.Errorf("dns: check %s has no spec", check.UUID)
	}
	s := spec.DNS
	timeout := spec.Timeout().Duration

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolverAddr := s.Resolver
	if resolverAddr == "" {
		resolverAddr = DefaultResolver
	}
	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, net.JoinHostPort(resolverAddr, "53"))
		},
	}

	found, err := matchRecord(ctx, resolver, strings.ToUpper(s.Record), s.Name, s.Expected)
	if err != nil {
		return event(check, site, model.StatusCritical, err.Error()), nil
	}
	if !found {
		return event(check, site, model.StatusCritical,
			fmt.Sprintf("%s record for %s did not match %s", s.Record, s.Name, s.Expected)), nil
	}
	return event(check, site, model.StatusOK, ""), nil
}

func matchRecord(ctx context.Context, resolver *net.Resolver, record, name, expected string) (bool, error) {
	switch record {
	case "A", "AAAA":
		ips, err := resolver.LookupIPAddr(ctx, name)
		if err != nil {
			return false, err
		}
		for _, ip := range ips {
			if ip.IP.String() == expected {
				return true, nil
			}
		}
		return false, nil

	case "CNAME":
		cname, err := resolver.LookupCNAME(ctx, name)
		if err != nil {
			return false, err
		}
		return strings.TrimSuffix(cname, ".") == strings.TrimSuffix(expected, "."), nil

	case "MX":
		records, err := resolver.LookupMX(ctx, name)
		if err != nil {
			return false, err
		}
		for _, mx := range records {
			if strings.TrimSuffix(mx.Host, ".") == strings.TrimSuffix(expected, ".") {
				return true, nil
			}
		}
		return false, nil

	case "NS":
		records, err := resolver.LookupNS(ctx, name)
		if err != nil {
			return false, err
		}
		for _, ns := range records {
			if strings.TrimSuffix(ns.Host, ".") == strings.TrimSuffix(expected, ".") {
				return true, nil
			}
		}
		return false, nil

	case "TXT":
		records, err := resolver.LookupTXT(ctx, name)
		if err != nil {
			return false, err
		}
		for _, txt := range records {
			if txt == expected {
				return true, nil
			}
		}
		return false, nil

	case "SRV":
		_, records, err := resolver.LookupSRV(ctx, "", "", name)
		if err != nil {
			return false, err
		}
		for _, srv := range records {
			if strings.TrimSuffix(srv.Target, ".") == strings.TrimSuffix(expected, ".") {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("unsupported dns record type %q", record)
	}
}
