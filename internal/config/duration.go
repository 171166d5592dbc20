package config

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/jmylchreest/mixarr/pkg/duration"
)

// Duration is a time.Duration whose textual form accepts calendar units
// on top of Go's standard syntax: 'd' for days and 'w' for weeks. Config
// values like "30d", "2w" or "1w2d12h" decode directly; plain Go forms
// such as "720h" keep working. Implements TextUnmarshaler for
// Viper/YAML and json.Unmarshaler for JSON config files.
type Duration time.Duration

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseDuration parses a duration string, including 'd' and 'w' units.
func ParseDuration(s string) (Duration, error) {
	d, err := duration.Parse(s)
	return Duration(d), err
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String renders weeks and days as 'w'/'d' components with any
// sub-day remainder in standard Go form, e.g. "1w2d12h0m0s".
func (d Duration) String() string {
	rem := time.Duration(d)
	if rem == 0 {
		return "0s"
	}

	var out string
	if rem < 0 {
		out = "-"
		rem = -rem
	}
	if weeks := rem / week; weeks > 0 {
		out += strconv.FormatInt(int64(weeks), 10) + "w"
		rem -= weeks * week
	}
	if days := rem / day; days > 0 {
		out += strconv.FormatInt(int64(days), 10) + "d"
		rem -= days * day
	}
	if rem > 0 {
		// Sub-day remainder keeps the standard Go rendering.
		out += rem.String()
	}
	return out
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts either a duration string or a raw nanosecond
// count.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return err
	}
	*d = Duration(ns)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
