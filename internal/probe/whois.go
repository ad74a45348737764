package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

// whoisServer is the IANA root WHOIS server; most registries answer a
// direct query for the domain's expiry attribute without needing a
// referral hop, which is all this probe needs.
const whoisServer = "whois.iana.org:43"

// dateLayouts covers the handful of date formats registries commonly
// report an expiry attribute in.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Whois queries the WHOIS record for spec.Domain and checks spec.Attribute's
// date against the warn/critical day thresholds. No WHOIS client library
// ships anywhere in the retrieval pack; WHOIS is a trivial line-oriented
// TCP protocol (RFC 3912), so this dials it directly over stdlib net.
func Whois(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.Whois == nil {
		return model.Event{}, fmt.Errorf("whois: check %s has no spec", check.UUID)
	}
	s := spec.Whois
	timeout := spec.Timeout().Duration

	attribute := s.Attribute
	if attribute == "" {
		attribute = "Registry Expiry Date"
	}

	record, err := queryWhois(ctx, s.Domain, timeout)
	if err != nil {
		return model.Event{}, fmt.Errorf("whois: %w", err)
	}

	value, ok := lookupAttribute(record, attribute)
	if !ok {
		return model.Event{}, fmt.Errorf("whois: attribute %q not found for %s", attribute, s.Domain)
	}

	expiry, err := parseWhoisDate(value)
	if err != nil {
		return model.Event{}, fmt.Errorf("whois: parse expiry date: %w", err)
	}

	daysRemaining := int(time.Until(expiry).Hours() / 24)

	warnDays := s.WarnDays
	if warnDays == 0 {
		warnDays = 30
	}
	criticalDays := s.CriticalDays
	if criticalDays == 0 {
		criticalDays = 7
	}

	switch {
	case daysRemaining <= criticalDays:
		return event(check, site, model.StatusCritical, fmt.Sprintf("domain is expiring in %d days", daysRemaining)), nil
	case daysRemaining <= warnDays:
		return event(check, site, model.StatusWarning, fmt.Sprintf("domain is expiring in %d days", daysRemaining)), nil
	default:
		return event(check, site, model.StatusOK, fmt.Sprintf("domain is expiring in %d days", daysRemaining)), nil
	}
}

func queryWhois(ctx context.Context, domain string, timeout time.Duration) (string, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", whoisServer)
	if err != nil {
		return "", fmt.Errorf("dial whois server: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(domain + "\r\n")); err != nil {
		return "", fmt.Errorf("send whois query: %w", err)
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read whois response: %w", err)
	}
	return string(body), nil
}

func lookupAttribute(record, attribute string) (string, bool) {
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), attribute) {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func parseWhoisDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
