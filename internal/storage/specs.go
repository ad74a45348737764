package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

// GetSpec is the exported accessor the API layer uses to assemble a check's
// full wire representation; loadSpec stays unexported since every other
// caller already has the check's kind in hand from the same query.
func (db *DB) GetSpec(checkID int64, kind model.CheckKind) (*model.Spec, error) {
	return db.loadSpec(checkID, kind)
}

// loadSpec reads the sibling spec table matching kind for a check. Each
// check has exactly one spec row, in the table named after its kind — the
// per-kind sibling-table layout described in SPEC_FULL.md.
func (db *DB) loadSpec(checkID int64, kind model.CheckKind) (*model.Spec, error) {
	spec := &model.Spec{Kind: kind}

	switch kind {
	case model.KindPing:
		var s model.PingSpec
		var timeout sql.NullInt64
		err := db.conn.QueryRow(`SELECT host, timeout_seconds FROM ping_specs WHERE check_id=?`, checkID).
			Scan(&s.Host, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load ping spec: %w", err)
		}
		s.Timeout = secondsToDuration(timeout)
		spec.Ping = &s

	case model.KindHTTP:
		var s model.HTTPSpec
		var headers sql.NullString
		var maxDuration, timeout sql.NullInt64
		var contentSubstring, bodyDigest, jsonPath, jsonPathExpected sql.NullString
		err := db.conn.QueryRow(`
			SELECT url, method, headers, expected_status, content_substring, body_digest,
				json_path, json_path_expected, max_duration_seconds, timeout_seconds
			FROM http_specs WHERE check_id=?`, checkID).
			Scan(&s.URL, &s.Method, &headers, &s.ExpectedStatus, &contentSubstring, &bodyDigest,
				&jsonPath, &jsonPathExpected, &maxDuration, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load http spec: %w", err)
		}
		if headers.Valid && headers.String != "" {
			if err := json.Unmarshal([]byte(headers.String), &s.Headers); err != nil {
				return nil, fmt.Errorf("decode http headers: %w", err)
			}
		}
		s.ContentSubstring = contentSubstring.String
		s.BodyDigest = bodyDigest.String
		s.JSONPath = jsonPath.String
		s.JSONPathExpected = jsonPathExpected.String
		s.MaxDuration = secondsToDuration(maxDuration)
		s.Timeout = secondsToDuration(timeout)
		spec.HTTP = &s

	case model.KindTCP:
		var s model.TCPSpec
		var timeout sql.NullInt64
		err := db.conn.QueryRow(`SELECT host, port, timeout_seconds FROM tcp_specs WHERE check_id=?`, checkID).
			Scan(&s.Host, &s.Port, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load tcp spec: %w", err)
		}
		s.Timeout = secondsToDuration(timeout)
		spec.TCP = &s

	case model.KindUDP:
		var s model.UDPSpec
		var timeout sql.NullInt64
		err := db.conn.QueryRow(`SELECT host, port, message, content, timeout_seconds FROM udp_specs WHERE check_id=?`, checkID).
			Scan(&s.Host, &s.Port, &s.Message, &s.Content, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load udp spec: %w", err)
		}
		s.Timeout = secondsToDuration(timeout)
		spec.UDP = &s

	case model.KindDNS:
		var s model.DNSSpec
		var resolver sql.NullString
		var timeout sql.NullInt64
		err := db.conn.QueryRow(`SELECT name, record, expected, resolver, timeout_seconds FROM dns_specs WHERE check_id=?`, checkID).
			Scan(&s.Name, &s.Record, &s.Expected, &resolver, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load dns spec: %w", err)
		}
		s.Resolver = resolver.String
		s.Timeout = secondsToDuration(timeout)
		spec.DNS = &s

	case model.KindTLS:
		var s model.TLSSpec
		var timeout sql.NullInt64
		err := db.conn.QueryRow(`SELECT host, port, warn_days, critical_days, timeout_seconds FROM tls_specs WHERE check_id=?`, checkID).
			Scan(&s.Host, &s.Port, &s.WarnDays, &s.CriticalDays, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load tls spec: %w", err)
		}
		s.Timeout = secondsToDuration(timeout)
		spec.TLS = &s

	case model.KindWhois:
		var s model.WhoisSpec
		var timeout sql.NullInt64
		err := db.conn.QueryRow(`SELECT domain, attribute, warn_days, critical_days, timeout_seconds FROM whois_specs WHERE check_id=?`, checkID).
			Scan(&s.Domain, &s.Attribute, &s.WarnDays, &s.CriticalDays, &timeout)
		if err != nil {
			return nil, fmt.Errorf("load whois spec: %w", err)
		}
		s.Timeout = secondsToDuration(timeout)
		spec.Whois = &s

	case model.KindDeadManSwitch:
		var s model.DeadManSwitchSpec
		var staleAfter int64
		err := db.conn.QueryRow(`SELECT stale_after_seconds FROM deadmanswitch_specs WHERE check_id=?`, checkID).
			Scan(&staleAfter)
		if err != nil {
			return nil, fmt.Errorf("load deadmanswitch spec: %w", err)
		}
		s.StaleAfter = model.NewDuration(time.Duration(staleAfter) * time.Second)
		spec.DeadManSwitch = &s

	default:
		return nil, fmt.Errorf("unsupported check kind %q", kind)
	}

	return spec, nil
}

// SaveSpec upserts the sibling spec row for a check. Changing a check's kind
// is forbidden per §3, so this only ever writes to the table matching
// check.Kind.
func (db *DB) SaveSpec(checkID int64, spec *model.Spec) error {
	switch spec.Kind {
	case model.KindPing:
		s := spec.Ping
		_, err := db.conn.Exec(`
			INSERT INTO ping_specs (check_id, host, timeout_seconds) VALUES (?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET host=excluded.host, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.Host, durationToSeconds(s.Timeout))
		return err

	case model.KindHTTP:
		s := spec.HTTP
		var headers string
		if len(s.Headers) > 0 {
			b, err := json.Marshal(s.Headers)
			if err != nil {
				return fmt.Errorf("encode http headers: %w", err)
			}
			headers = string(b)
		}
		_, err := db.conn.Exec(`
			INSERT INTO http_specs (check_id, url, method, headers, expected_status, content_substring,
				body_digest, json_path, json_path_expected, max_duration_seconds, timeout_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET url=excluded.url, method=excluded.method,
				headers=excluded.headers, expected_status=excluded.expected_status,
				content_substring=excluded.content_substring, body_digest=excluded.body_digest,
				json_path=excluded.json_path, json_path_expected=excluded.json_path_expected,
				max_duration_seconds=excluded.max_duration_seconds, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.URL, orDefault(s.Method, "GET"), headers, s.ExpectedStatus, s.ContentSubstring,
			s.BodyDigest, s.JSONPath, s.JSONPathExpected, durationToSeconds(s.MaxDuration), durationToSeconds(s.Timeout))
		return err

	case model.KindTCP:
		s := spec.TCP
		_, err := db.conn.Exec(`
			INSERT INTO tcp_specs (check_id, host, port, timeout_seconds) VALUES (?, ?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET host=excluded.host, port=excluded.port, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.Host, s.Port, durationToSeconds(s.Timeout))
		return err

	case model.KindUDP:
		s := spec.UDP
		_, err := db.conn.Exec(`
			INSERT INTO udp_specs (check_id, host, port, message, content, timeout_seconds) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET host=excluded.host, port=excluded.port,
				message=excluded.message, content=excluded.content, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.Host, s.Port, s.Message, s.Content, durationToSeconds(s.Timeout))
		return err

	case model.KindDNS:
		s := spec.DNS
		_, err := db.conn.Exec(`
			INSERT INTO dns_specs (check_id, name, record, expected, resolver, timeout_seconds)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET name=excluded.name, record=excluded.record,
				expected=excluded.expected, resolver=excluded.resolver, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.Name, s.Record, s.Expected, s.Resolver, durationToSeconds(s.Timeout))
		return err

	case model.KindTLS:
		s := spec.TLS
		_, err := db.conn.Exec(`
			INSERT INTO tls_specs (check_id, host, port, warn_days, critical_days, timeout_seconds)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET host=excluded.host, port=excluded.port,
				warn_days=excluded.warn_days, critical_days=excluded.critical_days, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.Host, s.Port, s.WarnDays, s.CriticalDays, durationToSeconds(s.Timeout))
		return err

	case model.KindWhois:
		s := spec.Whois
		_, err := db.conn.Exec(`
			INSERT INTO whois_specs (check_id, domain, attribute, warn_days, critical_days, timeout_seconds)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(check_id) DO UPDATE SET domain=excluded.domain, attribute=excluded.attribute,
				warn_days=excluded.warn_days, critical_days=excluded.critical_days, timeout_seconds=excluded.timeout_seconds
		`, checkID, s.Domain, s.Attribute, s.WarnDays, s.CriticalDays, durationToSeconds(s.Timeout))
		return err

	case model.KindDeadManSwitch:
		s := spec.DeadManSwitch
		_, err := db.conn.Exec(`
			INSERT INTO deadmanswitch_specs (check_id, stale_after_seconds) VALUES (?, ?)
			ON CONFLICT(check_id) DO UPDATE SET stale_after_seconds=excluded.stale_after_seconds
		`, checkID, int64(s.StaleAfter.Duration.Seconds()))
		return err

	default:
		return fmt.Errorf("unsupported check kind %q", spec.Kind)
	}
}

func secondsToDuration(n sql.NullInt64) model.Duration {
	if !n.Valid {
		return model.Duration{}
	}
	return model.NewDuration(time.Duration(n.Int64) * time.Second)
}

func durationToSeconds(d model.Duration) interface{} {
	if d.Duration == 0 {
		return nil
	}
	return int64(d.Duration.Seconds())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
