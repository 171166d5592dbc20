package config

import (
	"encoding/json"

	"github.com/jmylchreest/mixarr/pkg/bytesize"
)

// ByteSize is a byte count whose textual form accepts binary units, so
// config values like "500KB", "1.5 GB" or "2gb" decode directly. A bare
// number is taken as raw bytes. Implements TextUnmarshaler for
// Viper/YAML and json.Unmarshaler for JSON config files.
type ByteSize int64

// ParseByteSize parses a byte size string such as "10MB".
func ParseByteSize(s string) (ByteSize, error) {
	size, err := bytesize.Parse(s)
	return ByteSize(size), err
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// String renders the size with the largest unit that divides cleanly,
// e.g. "10MB" or "1.5KB".
func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts either a size string or a raw byte count.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return b.UnmarshalText([]byte(s))
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}
