// Package usercontext loads and parses the listener profile file that
// personalizes track selection and speech prompts.
package usercontext

import (
	"fmt"
	"os"
	"strings"
)

// Defaults applied when no profile file is present or a field cannot be
// parsed from it.
const (
	DefaultName = "User"
	DefaultMood = 0.7
)

// genericPrompt stands in for the profile text when none is available.
const genericPrompt = "Generic user"

// Context is the listener profile applied to track selection and speech
// prompts.
type Context struct {
	// Name is the listener's name, taken from a leading "User: <name>" line.
	Name string
	// Preferences are the bullet items from the "Music Preferences:" section.
	Preferences []string
	// Genres seed selection when nothing else is known.
	Genres []string
	// Mood is the target energy in [0,1].
	Mood float64
	// RawText is the unparsed profile text, carried verbatim into prompts.
	RawText string
}

// Default returns the profile used when no context file is available.
func Default() Context {
	return Context{
		Name:   DefaultName,
		Genres: []string{"pop"},
		Mood:   DefaultMood,
	}
}

// Parse extracts the listener profile from free-form text.
//
// The first line may carry "User: <name>"; a parenthetical after the name
// is dropped. A "Music Preferences:" line opens a section of "- item"
// bullets that runs until a line starting with "DJ " or containing a colon.
// Mood and genres are not read from the file and keep their defaults.
func Parse(raw string) Context {
	ctx := Default()
	ctx.RawText = raw

	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) > 0 {
		if _, rest, found := strings.Cut(lines[0], "User:"); found {
			name, _, _ := strings.Cut(rest, "(")
			if name = strings.TrimSpace(name); name != "" {
				ctx.Name = name
			}
		}
	}

	inPrefs := false
	for _, line := range lines {
		if strings.Contains(line, "Music Preferences:") {
			inPrefs = true
			continue
		}
		if !inPrefs {
			continue
		}
		if strings.HasPrefix(line, "DJ ") || strings.Contains(line, ":") {
			inPrefs = false
			continue
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") {
			continue
		}
		if pref := strings.TrimSpace(strings.TrimLeft(trimmed, "-")); pref != "" {
			ctx.Preferences = append(ctx.Preferences, pref)
		}
	}

	return ctx
}

// Load reads and parses the profile at path. A missing file is not an
// error: the defaults are returned so the player can run unconfigured. Any
// other read failure also returns the defaults, alongside the error so the
// caller can log it and keep going.
func Load(path string) (Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("reading user context: %w", err)
	}
	return Parse(string(data)), nil
}

// PromptText returns the text injected into speech prompts: the raw profile
// when one was loaded, otherwise a generic stand-in.
func (c Context) PromptText() string {
	if strings.TrimSpace(c.RawText) == "" {
		return genericPrompt
	}
	return c.RawText
}
