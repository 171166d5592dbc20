// Package m3u reads and writes extended M3U audio playlists. The file
// sink maintains one over the playout directory; external players and
// consumers read it back.
package m3u

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Entry is one playlist item.
type Entry struct {
	// Duration is the item length in whole seconds. Zero writes as -1,
	// the M3U convention for unknown length.
	Duration int

	// TvgID carries the track identifier as a tvg-id attribute, letting
	// consumers correlate playlist items with sidecar metadata.
	TvgID string

	// Title is the display title on the EXTINF line.
	Title string

	// URL is the item location: a file name relative to the playlist, a
	// path, or a URL.
	URL string

	// Extra holds additional EXTINF attributes by name.
	Extra map[string]string
}

// Writer provides streaming M3U playlist writing.
type Writer struct {
	w             io.Writer
	headerWritten bool
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the M3U header.
// This is automatically called by WriteEntry if not already written.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	_, err := fmt.Fprintln(w.w, "#EXTM3U")
	if err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes a single playlist entry.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	var attrs []string
	if entry.TvgID != "" {
		attrs = append(attrs, fmt.Sprintf(`tvg-id="%s"`, escapeQuotes(entry.TvgID)))
	}
	for k, v := range entry.Extra {
		attrs = append(attrs, fmt.Sprintf(`%s="%s"`, k, escapeQuotes(v)))
	}

	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}

	var extinf string
	if len(attrs) > 0 {
		extinf = fmt.Sprintf("#EXTINF:%d %s,%s", duration, strings.Join(attrs, " "), entry.Title)
	} else {
		extinf = fmt.Sprintf("#EXTINF:%d,%s", duration, entry.Title)
	}

	if _, err := fmt.Fprintln(w.w, extinf); err != nil {
		return fmt.Errorf("writing EXTINF: %w", err)
	}
	if _, err := fmt.Fprintln(w.w, entry.URL); err != nil {
		return fmt.Errorf("writing URL: %w", err)
	}

	return nil
}

// escapeQuotes escapes double quotes in attribute values.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// attrPattern matches key="value" attributes on an EXTINF line.
var attrPattern = regexp.MustCompile(`([a-zA-Z0-9_-]+)="((?:[^"\\]|\\.)*)"`)

// Parse reads a playlist, returning its entries in order. Lines that are
// neither EXTINF directives nor locations are skipped, so playlists with
// unknown directives still parse.
func Parse(r io.Reader) ([]*Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []*Entry
	var pending *Entry

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line == "#EXTM3U":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			pending = parseExtinf(strings.TrimPrefix(line, "#EXTINF:"))
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending == nil {
				pending = &Entry{Title: line}
			}
			pending.URL = line
			entries = append(entries, pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}

	return entries, nil
}

// parseExtinf parses the "duration [attrs],title" remainder of an EXTINF
// line.
func parseExtinf(s string) *Entry {
	entry := &Entry{}

	meta, title := splitExtinf(s)
	entry.Title = strings.TrimSpace(title)

	fields := strings.SplitN(strings.TrimSpace(meta), " ", 2)
	if d, err := strconv.Atoi(fields[0]); err == nil && d > 0 {
		entry.Duration = d
	}

	if len(fields) == 2 {
		for _, m := range attrPattern.FindAllStringSubmatch(fields[1], -1) {
			key, value := m[1], strings.ReplaceAll(m[2], `\"`, `"`)
			if key == "tvg-id" {
				entry.TvgID = value
				continue
			}
			if entry.Extra == nil {
				entry.Extra = make(map[string]string)
			}
			entry.Extra[key] = value
		}
	}

	return entry
}

// splitExtinf splits the EXTINF remainder on the first comma outside
// quoted attribute values. The title keeps any commas of its own.
func splitExtinf(s string) (meta, title string) {
	inQuotes := false
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}
