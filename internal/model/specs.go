package model

// Spec is the kind-specific configuration for a Check. Exactly one concrete
// type is populated per Check, tagged by Check.Kind; the JSON wire format
// already uses "kind" as the discriminant, so Spec mirrors that as a sum
// type instead of reaching for interface{} dispatch.
type Spec struct {
	Kind CheckKind `json:"kind"`

	Ping          *PingSpec          `json:"ping,omitempty"`
	HTTP          *HTTPSpec          `json:"http,omitempty"`
	TCP           *TCPSpec           `json:"tcp,omitempty"`
	UDP           *UDPSpec           `json:"udp,omitempty"`
	DNS           *DNSSpec           `json:"dns,omitempty"`
	TLS           *TLSSpec           `json:"tls,omitempty"`
	Whois         *WhoisSpec         `json:"whois,omitempty"`
	DeadManSwitch *DeadManSwitchSpec `json:"deadmanswitch,omitempty"`
}

// Timeout returns the spec-level probe deadline, defaulting to 5s when the
// spec omits one, per §4.2.
func (s *Spec) Timeout() Duration {
	var t *Duration
	switch s.Kind {
	case KindPing:
		if s.Ping != nil {
			t = &s.Ping.Timeout
		}
	case KindHTTP:
		if s.HTTP != nil {
			t = &s.HTTP.Timeout
		}
	case KindTCP:
		if s.TCP != nil {
			t = &s.TCP.Timeout
		}
	case KindUDP:
		if s.UDP != nil {
			t = &s.UDP.Timeout
		}
	case KindDNS:
		if s.DNS != nil {
			t = &s.DNS.Timeout
		}
	case KindTLS:
		if s.TLS != nil {
			t = &s.TLS.Timeout
		}
	case KindWhois:
		if s.Whois != nil {
			t = &s.Whois.Timeout
		}
	}
	if t == nil || t.Duration == 0 {
		return NewDuration(defaultProbeTimeout)
	}
	return *t
}

const defaultProbeTimeout = 5_000_000_000 // 5s, expressed in ns to avoid importing time here

// PingSpec probes ICMP reachability.
type PingSpec struct {
	Host    string   `json:"host"`
	Timeout Duration `json:"timeout,omitempty"`
}

// HTTPSpec validates an HTTP(S) response.
type HTTPSpec struct {
	URL              string            `json:"url"`
	Method           string            `json:"method,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	ExpectedStatus   int               `json:"expected_status,omitempty"`
	ContentSubstring string            `json:"content_substring,omitempty"`
	BodyDigest       string            `json:"body_digest,omitempty"`
	JSONPath         string            `json:"json_path,omitempty"`
	JSONPathExpected string            `json:"json_path_expected,omitempty"`
	MaxDuration      Duration          `json:"max_duration,omitempty"`
	Timeout          Duration          `json:"timeout,omitempty"`
}

// TCPSpec probes raw TCP connect.
type TCPSpec struct {
	Host    string   `json:"host"`
	Port    int      `json:"port"`
	Timeout Duration `json:"timeout,omitempty"`
}

// UDPSpec sends a datagram and checks the response for an expected
// substring within the configured timeout.
type UDPSpec struct {
	Host    string   `json:"host"`
	Port    int      `json:"port"`
	Message []byte   `json:"message"`
	Content []byte   `json:"content"`
	Timeout Duration `json:"timeout,omitempty"`
}

// DNSSpec compares a resolved record against an expected value.
type DNSSpec struct {
	Name     string   `json:"name"`
	Record   string   `json:"record"` // A, AAAA, CNAME, MX, TXT, ...
	Expected string   `json:"expected"`
	Resolver string   `json:"resolver,omitempty"`
	Timeout  Duration `json:"timeout,omitempty"`
}

// TLSSpec checks certificate expiry.
type TLSSpec struct {
	Host          string   `json:"host"`
	Port          int      `json:"port,omitempty"`
	WarnDays      int      `json:"warn_days,omitempty"`
	CriticalDays  int      `json:"critical_days,omitempty"`
	Timeout       Duration `json:"timeout,omitempty"`
}

// WhoisSpec parses a configurable attribute's date out of a WHOIS record.
type WhoisSpec struct {
	Domain       string   `json:"domain"`
	Attribute    string   `json:"attribute"` // e.g. "Registry Expiry Date"
	WarnDays     int      `json:"warn_days,omitempty"`
	CriticalDays int      `json:"critical_days,omitempty"`
	Timeout      Duration `json:"timeout,omitempty"`
}

// DeadManSwitchSpec reads the last deadmanswitch_logs row for the check.
type DeadManSwitchSpec struct {
	StaleAfter Duration `json:"stale_after"`
}
