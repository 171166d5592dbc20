// Package bytesize parses and formats human-readable byte sizes. All
// units are binary (1024-based): "5MB" is 5 * 1024 * 1024 bytes, and the
// IEC spellings (KiB, MiB, ...) are accepted as aliases. A bare number is
// a byte count.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size represents a byte size as int64.
type Size int64

// Common size constants using binary (1024) base.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
	PB Size = 1024 * TB
)

// units maps lowercase unit names to their byte multiplier.
var units = map[string]Size{
	"":      B,
	"b":     B,
	"byte":  B,
	"bytes": B,
	"k":     KB,
	"kb":    KB,
	"kib":   KB,
	"m":     MB,
	"mb":    MB,
	"mib":   MB,
	"g":     GB,
	"gb":    GB,
	"gib":   GB,
	"t":     TB,
	"tb":    TB,
	"tib":   TB,
	"p":     PB,
	"pb":    PB,
	"pib":   PB,
}

// Parse parses a human-readable byte size: an integer or decimal value
// with an optional unit, e.g. "5MB", "1.5 GB", "500KB", "1024".
func Parse(s string) (Size, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	trimmed := strings.TrimSpace(s)
	split := len(trimmed)
	for split > 0 {
		c := trimmed[split-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}
		split--
	}

	valueStr := strings.TrimSpace(trimmed[:split])
	unitStr := strings.ToLower(strings.TrimSpace(trimmed[split:]))

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("bytesize: negative size %q", s)
	}

	multiplier, ok := units[unitStr]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q", unitStr)
	}

	return Size(value * float64(multiplier)), nil
}

// Format converts a byte size to a human-readable string, using the
// largest unit that keeps the value at or above 1.
func Format(s Size) string {
	if s == 0 {
		return "0B"
	}

	negative := s < 0
	if negative {
		s = -s
	}

	var result string
	switch {
	case s >= PB:
		result = trimmedFloat(float64(s)/float64(PB), "PB")
	case s >= TB:
		result = trimmedFloat(float64(s)/float64(TB), "TB")
	case s >= GB:
		result = trimmedFloat(float64(s)/float64(GB), "GB")
	case s >= MB:
		result = trimmedFloat(float64(s)/float64(MB), "MB")
	case s >= KB:
		result = trimmedFloat(float64(s)/float64(KB), "KB")
	default:
		result = fmt.Sprintf("%dB", s)
	}

	if negative {
		return "-" + result
	}
	return result
}

// trimmedFloat formats a value with up to two decimals, dropping
// trailing zeros.
func trimmedFloat(value float64, unit string) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d%s", int64(value), unit)
	}
	formatted := strings.TrimRight(fmt.Sprintf("%.2f", value), "0")
	formatted = strings.TrimRight(formatted, ".")
	return formatted + unit
}

// Bytes returns the size in bytes as int64.
func (s Size) Bytes() int64 {
	return int64(s)
}

// String returns a human-readable string representation.
func (s Size) String() string {
	return Format(s)
}
