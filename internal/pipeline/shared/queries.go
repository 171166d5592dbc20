package shared

import (
	"math/rand/v2"
	"strings"
)

// FallbackArtists are known artist names used when query suggestion is
// unavailable or produces nothing usable. Real artist names search well
// against the catalog; genre descriptions do not.
var FallbackArtists = []string{
	"Queen", "ABBA", "Dua Lipa", "Elton John", "Wham",
	"Harry Styles", "The Weeknd", "Fleetwood Mac", "Bee Gees",
	"Culture Club", "Eurythmics", "Ed Sheeran", "Adele",
}

// bannedQueryTokens mark a suggested query as a genre description rather
// than a searchable artist or title.
var bannedQueryTokens = []string{"genre", "music", "anthems", "era", "70s", "80s", "90s"}

// maxQueryWords caps suggested query length; longer strings are prompt
// fragments, not searches.
const maxQueryWords = 6

// ValidQuery reports whether a suggested search query is usable against
// the catalog.
func ValidQuery(q string) bool {
	if strings.TrimSpace(q) == "" {
		return false
	}
	if len(strings.Fields(q)) > maxQueryWords {
		return false
	}
	lower := strings.ToLower(q)
	for _, bad := range bannedQueryTokens {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}

// PickQuery returns a random valid query from the suggestions, or an empty
// string when none survive validation.
func PickQuery(queries []string) string {
	valid := make([]string, 0, len(queries))
	for _, q := range queries {
		if ValidQuery(q) {
			valid = append(valid, q)
		}
	}
	if len(valid) == 0 {
		return ""
	}
	return valid[rand.IntN(len(valid))]
}

// FallbackQuery returns a random fallback artist.
func FallbackQuery() string {
	return FallbackArtists[rand.IntN(len(FallbackArtists))]
}
