package util

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// invalidFilenameChars are removed when building filenames from track
// metadata. The set covers every character that is reserved on at least one
// supported filesystem.
const invalidFilenameChars = `<>:"/\|?*`

// maxFilenameComponent caps the length of a sanitized name component.
const maxFilenameComponent = 100

// SanitizeFileName strips filesystem-reserved characters from name and trims
// it to a usable length. Truncation counts runes, not bytes, so multi-byte
// titles are never cut mid-character.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if !strings.ContainsRune(invalidFilenameChars, r) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if runes := []rune(s); len(runes) > maxFilenameComponent {
		s = string(runes[:maxFilenameComponent])
	}
	return strings.TrimSpace(s)
}

// TrackFilename builds the canonical cache filename for a track. Every
// component that writes or looks up cached audio must agree on this form.
func TrackFilename(artist, title string) string {
	return SanitizeFileName(artist) + " - " + SanitizeFileName(title) + ".mp3"
}

// ShortID returns an 8-character lowercase hex identifier for generated
// filenames (rendered segments, voice clips).
func ShortID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:4])
}
