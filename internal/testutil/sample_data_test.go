package testutil

import (
	"strings"
	"testing"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleDataGenerator(t *testing.T) {
	gen := NewSampleDataGenerator()
	require.NotNil(t, gen)
	require.NotNil(t, gen.rng)
}

func TestNewSampleDataGeneratorWithSeed(t *testing.T) {
	gen1 := NewSampleDataGeneratorWithSeed(42)
	gen2 := NewSampleDataGeneratorWithSeed(42)

	// Same seed should produce same results
	assert.Equal(t, gen1.RandomArtist(), gen2.RandomArtist())
	assert.Equal(t, gen1.GenerateTrackTitle(), gen2.GenerateTrackTitle())
}

func TestRandomArtist(t *testing.T) {
	gen := NewSampleDataGenerator()

	for i := 0; i < 10; i++ {
		artist := gen.RandomArtist()
		assert.NotEmpty(t, artist)
		assert.Contains(t, Artists, artist)
	}
}

func TestRandomGenre(t *testing.T) {
	gen := NewSampleDataGenerator()

	for i := 0; i < 10; i++ {
		genre := gen.RandomGenre()
		assert.NotEmpty(t, genre)
		assert.Contains(t, Genres, genre)
	}
}

func TestGenerateTrackTitle(t *testing.T) {
	gen := NewSampleDataGenerator()

	for i := 0; i < 10; i++ {
		title := gen.GenerateTrackTitle()
		parts := strings.SplitN(title, " ", 2)
		require.Len(t, parts, 2)
		assert.Contains(t, TitleLeads, parts[0])
		assert.Contains(t, TitleTails, parts[1])
	}
}

func TestGenerateSampleTracks(t *testing.T) {
	gen := NewSampleDataGenerator()
	opts := DefaultGenerateOptions()
	opts.CachedRatio = 0.0

	tracks := gen.GenerateSampleTracks(10, opts)
	assert.Len(t, tracks, 10)

	for _, tr := range tracks {
		assert.NotEmpty(t, tr.Artist)
		assert.NotEmpty(t, tr.Title)
		assert.NotEmpty(t, tr.ReleaseDate)
		assert.Contains(t, tr.SourceURL, "example.com")
		assert.Contains(t, tr.ArtworkURL, "example.com")
		assert.GreaterOrEqual(t, tr.DurationSec, opts.MinDurationSec)
		assert.LessOrEqual(t, tr.DurationSec, opts.MaxDurationSec)
		assert.Empty(t, tr.LocalPath)
	}
}

func TestGenerateCachedTracks(t *testing.T) {
	gen := NewSampleDataGenerator()
	tracks := gen.GenerateCachedTracks(5)

	assert.Len(t, tracks, 5)
	for _, tr := range tracks {
		assert.NotEmpty(t, tr.LocalPath)
		assert.Greater(t, tr.SizeBytes, int64(0))
	}
}

func TestGenerateUncachedTracks(t *testing.T) {
	gen := NewSampleDataGenerator()
	tracks := gen.GenerateUncachedTracks(5)

	assert.Len(t, tracks, 5)
	for _, tr := range tracks {
		assert.Empty(t, tr.LocalPath)
		assert.Zero(t, tr.SizeBytes)
	}
}

func TestSampleTrackToTrack(t *testing.T) {
	t.Run("cached", func(t *testing.T) {
		sample := SampleTrack{
			Artist:      "Nova Harlow",
			Title:       "Midnight Horizon",
			DurationSec: 215,
			LocalPath:   "/tmp/mixarr-test/tracks/track001.mp3",
			SizeBytes:   8600000,
		}

		track := sample.ToTrack()
		require.NotNil(t, track)
		assert.Equal(t, "Nova Harlow", track.Artist)
		assert.Equal(t, "Midnight Horizon", track.Title)
		assert.True(t, track.IsCached())
		assert.Equal(t, int64(8600000), track.CachedBytes())
	})

	t.Run("uncached", func(t *testing.T) {
		sample := SampleTrack{
			Artist:      "Static Parade",
			Title:       "Electric Tide",
			DurationSec: 189,
		}

		track := sample.ToTrack()
		require.NotNil(t, track)
		assert.False(t, track.IsCached())
		assert.Zero(t, track.CachedBytes())
	})
}

func TestGenerateFeatures(t *testing.T) {
	gen := NewSampleDataGenerator()
	trackID := models.NewUUID()

	features := gen.GenerateFeatures(trackID)
	require.NotNil(t, features)
	assert.Equal(t, trackID, features.TrackID)
	assert.GreaterOrEqual(t, features.Key, 0)
	assert.LessOrEqual(t, features.Key, 11)
	assert.Contains(t, []int{0, 1}, features.Mode)
	assert.GreaterOrEqual(t, features.Tempo, 70.0)
	assert.LessOrEqual(t, features.Tempo, 180.0)
	assert.Equal(t, 4, features.TimeSignature)
	assert.True(t, features.HasTempo())
}

func TestGenerateLyrics(t *testing.T) {
	gen := NewSampleDataGenerator()
	trackID := models.NewUUID()

	lyrics := gen.GenerateLyrics(trackID)
	require.NotNil(t, lyrics)
	assert.Equal(t, trackID, lyrics.TrackID)
	assert.NotEmpty(t, lyrics.Themes)
	assert.NotEmpty(t, lyrics.Moods)
	assert.Contains(t, NarrativeStyles, lyrics.NarrativeStyle)
	for _, theme := range lyrics.Themes {
		assert.Contains(t, LyricThemes, theme)
	}
}

func TestGenerateSession(t *testing.T) {
	gen := NewSampleDataGenerator()

	session := gen.GenerateSession()
	require.NotNil(t, session)
	assert.False(t, session.ID.IsZero())
	assert.Equal(t, models.SessionModeContinuous, session.Mode)
	assert.True(t, session.IsActive())
}
