package storage

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Segment filename prefixes. The prefix records how a segment opens:
// intro segments start a session with a voice intro over the first track,
// mix segments carry a transition between two tracks.
const (
	SegmentPrefixIntro = "intro"
	SegmentPrefixMix   = "mix"
)

const (
	segmentExt    = ".mp3"
	sidecarSuffix = ".json"
)

// SegmentStore holds rendered segments and their sidecars.
// Directory structure:
//   - {prefix}_{hex}.mp3       - published segment audio
//   - {prefix}_{hex}.mp3.json  - sidecar describing the segment's seams
//   - temp/render-*/           - per-render scratch, reclaimed after publish
//
// Renders work in a scratch directory and publish atomically, so a reader
// of the store never sees a half-written segment.
type SegmentStore struct {
	sandbox *Sandbox
}

// NewSegmentStore creates a SegmentStore rooted at the given base directory.
func NewSegmentStore(baseDir string) (*SegmentStore, error) {
	sandbox, err := NewSandbox(baseDir)
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	return &SegmentStore{sandbox: sandbox}, nil
}

// Dir returns the absolute path to the segment directory.
func (s *SegmentStore) Dir() string {
	return s.sandbox.BaseDir()
}

// NewSegmentName generates a fresh segment filename for the given prefix,
// e.g. "mix_3fb02a1c.mp3".
func (s *SegmentStore) NewSegmentName(prefix string) string {
	return fmt.Sprintf("%s_%s%s", prefix, randomHex(8), segmentExt)
}

// randomHex returns n hex characters of cryptographic randomness.
func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

// WorkDir creates a fresh scratch directory for one render and returns its
// absolute path. The renderer writes its output and any voice clips there;
// the caller releases the directory once the segment is published.
func (s *SegmentStore) WorkDir() (string, error) {
	tempDir, err := s.sandbox.TempDir()
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(tempDir, "render-")
	if err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	return dir, nil
}

// ReleaseWorkDir removes a work directory created by WorkDir, including
// anything left inside it. Paths outside temp/ are refused.
func (s *SegmentStore) ReleaseWorkDir(absDir string) error {
	rel, err := filepath.Rel(s.sandbox.BaseDir(), absDir)
	if err != nil || !strings.HasPrefix(rel, "temp"+string(filepath.Separator)) {
		return fmt.Errorf("not a work directory: %s", absDir)
	}
	return s.sandbox.RemoveAll(rel)
}

// Publish moves a rendered file from its work directory into the store
// under the given name. Returns the published absolute path and file size.
func (s *SegmentStore) Publish(srcAbsPath, name string) (string, int64, error) {
	if err := s.sandbox.AtomicPublish(srcAbsPath, name); err != nil {
		return "", 0, fmt.Errorf("publishing segment: %w", err)
	}

	absPath, err := s.sandbox.ResolvePath(name)
	if err != nil {
		return "", 0, err
	}

	size, err := s.sandbox.Size(name)
	if err != nil {
		return "", 0, fmt.Errorf("sizing published segment: %w", err)
	}

	return absPath, size, nil
}

// WriteSidecar writes the segment's sidecar next to its audio file and
// returns the sidecar's absolute path.
func (s *SegmentStore) WriteSidecar(name string, sc *Sidecar) (string, error) {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling sidecar: %w", err)
	}

	rel := name + sidecarSuffix
	if err := s.sandbox.AtomicWrite(rel, data); err != nil {
		return "", fmt.Errorf("writing sidecar: %w", err)
	}

	return s.sandbox.ResolvePath(rel)
}

// ReadSidecar reads the sidecar for a published segment.
func (s *SegmentStore) ReadSidecar(name string) (*Sidecar, error) {
	data, err := s.sandbox.ReadFile(name + sidecarSuffix)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}

	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("unmarshaling sidecar: %w", err)
	}
	return &sc, nil
}

// SidecarPath returns the absolute path of a segment's sidecar.
func (s *SegmentStore) SidecarPath(name string) (string, error) {
	return s.sandbox.ResolvePath(name + sidecarSuffix)
}

// AbsolutePath returns the absolute path of a published segment.
func (s *SegmentStore) AbsolutePath(name string) (string, error) {
	return s.sandbox.ResolvePath(name)
}

// CleanupStale reclaims scratch left behind by crashed or cancelled renders:
// work directories under temp/ and orphaned atomic-write temp files, once
// they are older than maxAge. Returns the number of entries removed.
func (s *SegmentStore) CleanupStale(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	// Stale work directories.
	if exists, _ := s.sandbox.Exists("temp"); exists {
		entries, err := s.sandbox.List("temp")
		if err != nil {
			return 0, err
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := s.sandbox.RemoveAll(filepath.Join("temp", entry.Name())); err == nil {
				removed++
			}
		}
	}

	// An interrupted atomic write or publish leaves a ".{name}.{hex}.tmp"
	// file next to its target.
	err := s.sandbox.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasPrefix(path, "temp"+string(filepath.Separator)) {
			return nil // covered above
		}
		base := filepath.Base(path)
		if !strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".tmp") {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := s.sandbox.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweeping temp files: %w", err)
	}

	return removed, nil
}
