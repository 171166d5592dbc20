// Package ingest reads seed track lists and imports them into the local
// catalog. A seed list is a JSON or YAML document of (artist, title)
// pairs, optionally with a free-text search query; compressed lists are
// detected by magic bytes and unpacked transparently.
package ingest

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"
)

// Entry is one seed-list row. Either Query or the (Artist, Title) pair
// must be present; when both are given, Query drives the source search
// and the pair pins the cache filename and catalog row.
type Entry struct {
	Artist string `json:"artist,omitempty" yaml:"artist,omitempty"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Query  string `json:"query,omitempty" yaml:"query,omitempty"`
}

// SearchQuery returns the free-text query used to resolve the entry
// against the audio source.
func (e Entry) SearchQuery() string {
	if e.Query != "" {
		return e.Query
	}
	return strings.TrimSpace(e.Artist + " " + e.Title)
}

// Validate checks that the entry can be resolved at all.
func (e Entry) Validate() error {
	if e.Query == "" && (e.Artist == "" || e.Title == "") {
		return fmt.Errorf("entry needs a query or an artist and title")
	}
	return nil
}

// seedDocument is the wrapped document form: {"tracks": [...]}. A bare
// top-level list is also accepted.
type seedDocument struct {
	Tracks []Entry `json:"tracks" yaml:"tracks"`
}

// LoadSeedFile reads a seed list from disk.
func LoadSeedFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed list: %w", err)
	}
	defer f.Close()

	entries, err := ReadSeedList(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return entries, nil
}

// ReadSeedList reads a seed list from a reader, unpacking gzip, bzip2,
// or xz compression when the stream's magic bytes announce it.
func ReadSeedList(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading stream header: %w", err)
	}

	var reader io.Reader = br
	switch {
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case len(magic) >= 3 && magic[0] == 'B' && magic[1] == 'Z' && magic[2] == 'h':
		reader = bzip2.NewReader(br)
	case len(magic) >= 6 && magic[0] == 0xfd && magic[1] == '7' && magic[2] == 'z' &&
		magic[3] == 'X' && magic[4] == 'Z' && magic[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		reader = xzr
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading seed list: %w", err)
	}

	entries, err := decodeSeedList(data)
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// decodeSeedList parses the uncompressed document. JSON is recognized by
// its first significant byte; everything else is treated as YAML.
func decodeSeedList(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty seed list")
	}

	if trimmed[0] == '[' || trimmed[0] == '{' {
		if trimmed[0] == '[' {
			var entries []Entry
			if err := json.Unmarshal(trimmed, &entries); err != nil {
				return nil, fmt.Errorf("parsing JSON seed list: %w", err)
			}
			return entries, nil
		}
		var doc seedDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parsing JSON seed list: %w", err)
		}
		return doc.Tracks, nil
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err == nil && len(entries) > 0 {
		return entries, nil
	}
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML seed list: %w", err)
	}
	return doc.Tracks, nil
}
