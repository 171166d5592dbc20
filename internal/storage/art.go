package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"

	// Cover art arrives in whatever format the catalog serves; register
	// the decoders so Store can canonicalize them all.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// ArtCache stores cover-art images, one canonical PNG per track. Whatever
// format the artwork URL served (PNG, JPEG, GIF, WebP), the cached copy is
// decoded and re-encoded so downstream consumers deal with one format.
// Files are sharded by the first two characters of the track ID to keep
// directory sizes bounded.
type ArtCache struct {
	sandbox *Sandbox
}

// NewArtCache creates an ArtCache rooted at the given base directory.
func NewArtCache(baseDir string) (*ArtCache, error) {
	sandbox, err := NewSandbox(baseDir)
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	return &ArtCache{sandbox: sandbox}, nil
}

// Dir returns the absolute path to the art cache base directory.
func (c *ArtCache) Dir() string {
	return c.sandbox.BaseDir()
}

// Path returns the relative path for a track's cover art.
func (c *ArtCache) Path(trackID string) string {
	shard := trackID
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(shard, trackID+".png")
}

// Store decodes the image data and writes it as the track's canonical PNG.
// Returns the absolute path of the stored file.
func (c *ArtCache) Store(trackID string, data []byte) (string, error) {
	if trackID == "" {
		return "", fmt.Errorf("empty track id")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding artwork (format=%s): %w", format, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding artwork: %w", err)
	}

	path := c.Path(trackID)
	if err := c.sandbox.AtomicWrite(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing artwork: %w", err)
	}

	return c.sandbox.ResolvePath(path)
}

// Has reports whether a track already has cached art.
func (c *ArtCache) Has(trackID string) bool {
	exists, err := c.sandbox.Exists(c.Path(trackID))
	return err == nil && exists
}

// AbsolutePath returns the absolute path of a track's cover art.
func (c *ArtCache) AbsolutePath(trackID string) (string, error) {
	return c.sandbox.ResolvePath(c.Path(trackID))
}
