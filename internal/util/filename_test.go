package util

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain name unchanged",
			input:    "Daft Punk",
			expected: "Daft Punk",
		},
		{
			name:     "slash removed",
			input:    "AC/DC",
			expected: "ACDC",
		},
		{
			name:     "question mark removed",
			input:    "What's Up?",
			expected: "What's Up",
		},
		{
			name:     "all reserved characters removed",
			input:    `a<b>c:d"e/f\g|h?i*j`,
			expected: "abcdefghij",
		},
		{
			name:     "whitespace trimmed",
			input:    "  Queen  ",
			expected: "Queen",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFileName(tt.input))
		})
	}
}

func TestSanitizeFileName_TruncatesLongNames(t *testing.T) {
	long := strings.Repeat("x", 150)
	got := SanitizeFileName(long)
	assert.Len(t, got, 100)
}

func TestSanitizeFileName_TruncatesByRunes(t *testing.T) {
	// 150 three-byte runes; byte-based truncation would split one.
	long := strings.Repeat("日", 150)
	got := SanitizeFileName(long)
	assert.Equal(t, strings.Repeat("日", 100), got)
}

func TestSanitizeFileName_TrimsAfterTruncation(t *testing.T) {
	// Character 100 is a space, which must not survive as a trailing space.
	input := strings.Repeat("y", 99) + " z"
	got := SanitizeFileName(input)
	assert.Equal(t, strings.Repeat("y", 99), got)
}

func TestTrackFilename(t *testing.T) {
	assert.Equal(t, "ACDC - Back in Black.mp3", TrackFilename("AC/DC", "Back in Black"))
	assert.Equal(t, "Queen - Bohemian Rhapsody.mp3", TrackFilename("Queen", "Bohemian Rhapsody"))
}

func TestShortID(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}$`)

	a := ShortID()
	b := ShortID()

	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)
}
