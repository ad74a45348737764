package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so it marshals as a duration string
// (time.Duration.String: "10s", "5m0s", "1h0m0s") rather than Go's default
// nanosecond integer. Unmarshalling accepts such strings, the day/year forms
// ParseDuration understands ("30d", "1y"), or a nanosecond integer.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or number of nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

// ParseDuration extends time.ParseDuration with the day/year units the spec
// uses for retention thresholds ("30d", "1y"), since the standard library
// only goes up to hours.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if s == "0" {
		return 0, nil
	}

	// time.ParseDuration already understands ns/us/ms/s/m/h combinations.
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Fall back to a single trailing unit of d (days) or y (years).
	unit := s[len(s)-1]
	var multiplier time.Duration
	switch unit {
	case 'd':
		multiplier = 24 * time.Hour
	case 'y':
		multiplier = 365*24*time.Hour + 6*time.Hour // 1y = 365.25d, matches the original's 31557600s
	default:
		return 0, fmt.Errorf("unrecognized duration %q", s)
	}

	var n float64
	if _, err := fmt.Sscanf(s[:len(s)-1], "%g", &n); err != nil {
		return 0, fmt.Errorf("unrecognized duration %q: %w", s, err)
	}
	return time.Duration(n * float64(multiplier)), nil
}
