package httpclient

import (
	"fmt"
	"strconv"
	"strings"
)

// codeSpan is an inclusive range of HTTP status codes. A single code is
// a span with lo == hi.
type codeSpan struct {
	lo, hi int
}

// StatusCodeSet is a set of HTTP status codes expressed as spans.
//
// The textual form is a comma-separated list of codes and ranges:
// "200", "200,404", "200-299", "200-299,404,500-599".
type StatusCodeSet struct {
	spans []codeSpan
}

// ParseStatusCodes parses a comma-separated list of codes and inclusive
// ranges into a StatusCodeSet. Empty input yields nil.
func ParseStatusCodes(s string) (*StatusCodeSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	set := &StatusCodeSet{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, err := parseSpan(part)
		if err != nil {
			return nil, err
		}
		set.spans = append(set.spans, codeSpan{lo: lo, hi: hi})
	}

	if len(set.spans) == 0 {
		return nil, nil
	}
	return set, nil
}

// parseSpan parses "404" or "200-299" into an inclusive code range.
func parseSpan(part string) (int, int, error) {
	if lo, hi, ok := strings.Cut(part, "-"); ok {
		min, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range start %q: %w", lo, err)
		}
		max, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end %q: %w", hi, err)
		}
		if min > max {
			return 0, 0, fmt.Errorf("invalid range %d-%d: min > max", min, max)
		}
		if min < 100 || max > 599 {
			return 0, 0, fmt.Errorf("invalid HTTP status code range %d-%d: must be 100-599", min, max)
		}
		return min, max, nil
	}

	code, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid status code %q: %w", part, err)
	}
	if code < 100 || code > 599 {
		return 0, 0, fmt.Errorf("invalid HTTP status code %d: must be 100-599", code)
	}
	return code, code, nil
}

// MustParseStatusCodes is like ParseStatusCodes but panics on error.
// Use only for compile-time constants.
func MustParseStatusCodes(s string) *StatusCodeSet {
	set, err := ParseStatusCodes(s)
	if err != nil {
		panic(err)
	}
	return set
}

// StatusCodesFromSlice builds a StatusCodeSet from individual codes.
func StatusCodesFromSlice(codes []int) *StatusCodeSet {
	if len(codes) == 0 {
		return nil
	}

	set := &StatusCodeSet{spans: make([]codeSpan, 0, len(codes))}
	for _, code := range codes {
		set.spans = append(set.spans, codeSpan{lo: code, hi: code})
	}
	return set
}

// Contains reports whether the status code is in the set. Sets are
// small, so a linear scan over the spans is fine.
func (s *StatusCodeSet) Contains(code int) bool {
	if s == nil {
		return false
	}
	for _, span := range s.spans {
		if code >= span.lo && code <= span.hi {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set has no codes.
func (s *StatusCodeSet) IsEmpty() bool {
	return s == nil || len(s.spans) == 0
}

// String renders the set back in its textual form.
func (s *StatusCodeSet) String() string {
	if s.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(s.spans))
	for _, span := range s.spans {
		if span.lo == span.hi {
			parts = append(parts, strconv.Itoa(span.lo))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", span.lo, span.hi))
		}
	}
	return strings.Join(parts, ",")
}

// Clone returns a deep copy of the set.
func (s *StatusCodeSet) Clone() *StatusCodeSet {
	if s == nil {
		return nil
	}
	clone := &StatusCodeSet{spans: make([]codeSpan, len(s.spans))}
	copy(clone.spans, s.spans)
	return clone
}
