package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{name: "artist name", query: "Fleetwood Mac", want: true},
		{name: "artist and title", query: "Dua Lipa Levitating", want: true},
		{name: "empty", query: "", want: false},
		{name: "whitespace only", query: "   ", want: false},
		{name: "too many words", query: "the very best upbeat summer party hits", want: false},
		{name: "genre description", query: "upbeat pop music", want: false},
		{name: "decade description", query: "Best 80s Anthems", want: false},
		{name: "era description", query: "disco era classics", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidQuery(tt.query))
		})
	}
}

func TestPickQuery(t *testing.T) {
	t.Run("single valid suggestion", func(t *testing.T) {
		got := PickQuery([]string{"90s dance music", "Robyn", "feel good anthems"})
		assert.Equal(t, "Robyn", got)
	})

	t.Run("multiple valid suggestions", func(t *testing.T) {
		valid := []string{"Robyn", "Carly Rae Jepsen"}
		got := PickQuery(valid)
		assert.Contains(t, valid, got)
	})

	t.Run("nothing survives validation", func(t *testing.T) {
		assert.Empty(t, PickQuery([]string{"80s synth music", ""}))
	})

	t.Run("no suggestions", func(t *testing.T) {
		assert.Empty(t, PickQuery(nil))
	})
}

func TestFallbackQuery(t *testing.T) {
	for range 20 {
		assert.Contains(t, FallbackArtists, FallbackQuery())
	}
}
