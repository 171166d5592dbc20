// Package duration parses and formats human-readable durations. It
// covers everything time.ParseDuration does and adds calendar-ish units
// on top: days (24h), weeks (7d), months (30d), and years (365d). Units
// may be spelled short ("2w3d") or as words with optional spaces
// ("2 weeks 3 days").
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
	// Month is 30 days, an approximation.
	Month = 30 * Day
	// Year is 365 days, an approximation.
	Year = 365 * Day
)

// unitValues maps a lowercase unit spelling to its duration.
var unitValues = map[string]time.Duration{
	"ns": time.Nanosecond, "nano": time.Nanosecond, "nanos": time.Nanosecond,
	"nanosecond": time.Nanosecond, "nanoseconds": time.Nanosecond,

	"us": time.Microsecond, "µs": time.Microsecond, "micro": time.Microsecond,
	"micros": time.Microsecond, "microsecond": time.Microsecond, "microseconds": time.Microsecond,

	"ms": time.Millisecond, "milli": time.Millisecond, "millis": time.Millisecond,
	"millisecond": time.Millisecond, "milliseconds": time.Millisecond,

	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,

	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,

	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,

	"d": Day, "day": Day, "days": Day,

	"w": Week, "wk": Week, "wks": Week, "week": Week, "weeks": Week,

	"mo": Month, "mos": Month, "month": Month, "months": Month,

	"y": Year, "yr": Year, "yrs": Year, "year": Year, "years": Year,
}

// Parse parses a human-readable duration string such as "90m", "1.5h",
// "2 weeks", or "1w2d12h". Values and units alternate; whitespace
// between them is optional. A leading "-" negates the whole duration.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}

	var total time.Duration
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == start {
			return 0, fmt.Errorf("duration: expected number at %q", s[start:])
		}
		value, err := strconv.ParseFloat(s[start:i], 64)
		if err != nil {
			return 0, fmt.Errorf("duration: invalid number %q", s[start:i])
		}

		for i < len(s) && s[i] == ' ' {
			i++
		}

		unitStart := i
		for i < len(s) && isUnitByte(s[i]) {
			i++
		}
		unit := strings.ToLower(s[unitStart:i])
		if unit == "" {
			return 0, fmt.Errorf("duration: missing unit after %q", s[start:unitStart])
		}
		mult, ok := unitValues[unit]
		if !ok {
			return 0, fmt.Errorf("duration: unknown unit %q", unit)
		}

		total += time.Duration(value * float64(mult))
	}

	if negative {
		total = -total
	}
	return total, nil
}

// isUnitByte reports whether c can be part of a unit name. Bytes above
// 0x7f are accepted so the two-byte µ works.
func isUnitByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// formatUnits lists output units largest first.
var formatUnits = []struct {
	value time.Duration
	label string
}{
	{Year, "y"},
	{Month, "mo"},
	{Week, "w"},
	{Day, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
	{time.Millisecond, "ms"},
	{time.Microsecond, "µs"},
	{time.Nanosecond, "ns"},
}

// Format renders a duration compactly using the largest units that fit,
// omitting zero components: 26 hours becomes "1d2h", 90 seconds "1m30s".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	for _, u := range formatUnits {
		if n := d / u.value; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.label)
			d -= n * u.value
		}
	}
	return b.String()
}
