// Package ffmpeg wraps the external ffmpeg/ffprobe binaries: detection,
// audio probing, loudness measurement, and filter-graph renders.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/util"
)

// BinaryInfo contains information about the FFmpeg/FFprobe installation.
type BinaryInfo struct {
	FFmpegPath    string   `json:"ffmpeg_path"`
	FFprobePath   string   `json:"ffprobe_path"`
	Version       string   `json:"version"`
	MajorVersion  int      `json:"major_version"`
	MinorVersion  int      `json:"minor_version"`
	Configuration string   `json:"configuration,omitempty"`
	Encoders      []string `json:"encoders,omitempty"`
	Filters       []string `json:"filters,omitempty"`
}

// BinaryDetector handles detection and caching of FFmpeg binaries.
type BinaryDetector struct {
	ffmpegOverride  string
	ffprobeOverride string

	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector creates a new binary detector.
func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{
		cacheTTL: 5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for binary detection.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// WithPaths pins explicit binary paths, skipping the usual search order.
// Empty strings leave auto-detection in place for that binary.
func (d *BinaryDetector) WithPaths(ffmpegPath, ffprobePath string) *BinaryDetector {
	d.ffmpegOverride = ffmpegPath
	d.ffprobeOverride = ffprobePath
	return d
}

// Detect detects FFmpeg and FFprobe binaries and their capabilities.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check after acquiring write lock
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear clears the cached binary information.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

// detect performs the actual binary detection.
func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	// Search order: explicit config path -> MIXARR_FFMPEG_BINARY env var
	// -> ./ffmpeg -> PATH
	ffmpegPath := d.ffmpegOverride
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = util.FindBinary("ffmpeg", "MIXARR_FFMPEG_BINARY")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
	}
	info.FFmpegPath = ffmpegPath

	// ffprobe is required: track durations drive all segment timing.
	ffprobePath := d.ffprobeOverride
	if ffprobePath == "" {
		var err error
		ffprobePath, err = util.FindBinary("ffprobe", "MIXARR_FFPROBE_BINARY")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found: %w", err)
		}
	}
	info.FFprobePath = ffprobePath

	output, err := capture(ctx, ffmpegPath, "-version")
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	if err := parseVersion(output, info); err != nil {
		return nil, err
	}

	// Capability listings are advisory; a build that cannot report them
	// may still render.
	if output, err := capture(ctx, ffmpegPath, "-encoders", "-hide_banner"); err == nil {
		info.Encoders = parseEncoders(output)
	}
	if output, err := capture(ctx, ffmpegPath, "-filters", "-hide_banner"); err == nil {
		info.Filters = parseFilters(output)
	}

	return info, nil
}

// capture runs a binary and returns its stdout.
func capture(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).Output()
}

// parseVersion fills version fields from `ffmpeg -version` output.
// Version strings come in shapes like "6.0", "n6.0-2-g..." or "6.0.1".
func parseVersion(output []byte, info *BinaryInfo) error {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "ffmpeg version"):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			info.Version = fields[2]
			info.MajorVersion, info.MinorVersion = splitVersion(fields[2])
		case strings.HasPrefix(line, "configuration:"):
			info.Configuration = strings.TrimSpace(strings.TrimPrefix(line, "configuration:"))
		}
	}

	if info.Version == "" {
		return fmt.Errorf("failed to parse ffmpeg version")
	}
	return nil
}

// splitVersion extracts major.minor from a version token, tolerating a
// leading "n" and trailing build metadata.
func splitVersion(v string) (major, minor int) {
	v = strings.TrimPrefix(v, "n")

	majorStr, rest, ok := strings.Cut(v, ".")
	if !ok {
		return 0, 0
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return 0, 0
	}

	// Keep leading digits only: "0-2-gabc" -> 0.
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	minor, _ = strconv.Atoi(rest[:end])
	return major, minor
}

// parseEncoders parses `ffmpeg -encoders` output. Lines before the
// "------" separator are the legend.
func parseEncoders(output []byte) []string {
	var encoders []string
	pastLegend := false

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimLeft(scanner.Text(), " ")
		if !pastLegend {
			pastLegend = strings.Contains(line, "------")
			continue
		}

		// Format: "A....D encoder_name description" with V/A/S marking
		// the codec class.
		if len(line) < 8 {
			continue
		}
		switch line[0] {
		case 'V', 'A', 'S':
		default:
			continue
		}

		if fields := strings.Fields(line[6:]); len(fields) > 0 {
			encoders = append(encoders, fields[0])
		}
	}

	return encoders
}

// parseFilters parses `ffmpeg -filters` output into filter names.
func parseFilters(output []byte) []string {
	var filters []string

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		// Legend lines look like "  T.. = Timeline support".
		if strings.Contains(line, " = ") {
			continue
		}

		// Format: "T.C acrossfade AA->A Cross fade two input audio streams."
		fields := strings.Fields(line)
		if len(fields) >= 3 && strings.Contains(fields[2], "->") {
			filters = append(filters, fields[1])
		}
	}

	return filters
}

// HasEncoder returns true if the encoder is available.
func (info *BinaryInfo) HasEncoder(name string) bool {
	return slices.Contains(info.Encoders, name)
}

// HasFilter returns true if the filter is available.
func (info *BinaryInfo) HasFilter(name string) bool {
	return slices.Contains(info.Filters, name)
}

// JSON returns the binary info as JSON string.
func (info *BinaryInfo) JSON() string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}

// SupportsMinVersion returns true if FFmpeg version meets minimum requirement.
func (info *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if info.MajorVersion > major {
		return true
	}
	if info.MajorVersion == major && info.MinorVersion >= minor {
		return true
	}
	return false
}
