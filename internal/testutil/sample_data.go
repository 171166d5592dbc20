// Package testutil provides test utilities including sample data generation.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/jmylchreest/mixarr/internal/models"
)

// Standard fictional artists for test data.
// NEVER use real artist names, song titles, or album names.
var (
	Artists = []string{
		"The Velvet Arcade",
		"Nova Harlow",
		"Static Parade",
		"Juniper Vale",
		"The Midnight Cartography",
		"Ember & Ash",
		"Silverline Drift",
		"Calla Monroe",
		"The Paper Satellites",
		"Hollis Grey",
	}

	// TitleLeads and TitleTails combine into fictional track titles.
	TitleLeads = []string{
		"Midnight",
		"Electric",
		"Golden",
		"Neon",
		"Restless",
		"Crimson",
		"Hollow",
		"Burning",
		"Paper",
		"Silent",
	}

	TitleTails = []string{
		"Horizon",
		"Avenue",
		"Heartbeat",
		"Static",
		"Mirrors",
		"Tide",
		"Engine",
		"Letters",
		"Shadows",
		"Radio",
	}

	Genres = []string{
		"indie rock",
		"synthpop",
		"alt country",
		"electronic",
		"soul",
		"dream pop",
		"post punk",
		"folk",
	}

	// LyricThemes and LyricMoods feed generated lyric analyses.
	LyricThemes = []string{
		"love",
		"loss",
		"escape",
		"nostalgia",
		"night driving",
		"city life",
		"defiance",
	}

	LyricMoods = []string{
		"melancholy",
		"euphoric",
		"restless",
		"tender",
		"brooding",
		"triumphant",
	}

	NarrativeStyles = []string{
		"first-person",
		"storytelling",
		"stream-of-consciousness",
		"direct address",
	}
)

// SampleTrack represents a generated sample track for testing.
type SampleTrack struct {
	Artist      string
	Title       string
	ReleaseDate string
	DurationSec float64
	SourceURL   string
	ArtworkURL  string
	LocalPath   string
	SizeBytes   int64
	PlayCount   int
}

// ToTrack converts a SampleTrack to a models.Track.
func (s *SampleTrack) ToTrack() *models.Track {
	track := &models.Track{
		Artist:      s.Artist,
		Title:       s.Title,
		ReleaseDate: s.ReleaseDate,
		DurationSec: s.DurationSec,
		SourceURL:   s.SourceURL,
		ArtworkURL:  s.ArtworkURL,
		PlayCount:   s.PlayCount,
	}
	if s.LocalPath != "" {
		track.MarkCached(s.LocalPath, s.SizeBytes)
	}
	return track
}

// SampleDataGenerator generates realistic but fictional track data for testing.
type SampleDataGenerator struct {
	rng *rand.Rand
}

// NewSampleDataGenerator creates a new sample data generator with a random seed.
func NewSampleDataGenerator() *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewSampleDataGeneratorWithSeed creates a new generator with a fixed seed for reproducibility.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// RandomArtist returns a random fictional artist name.
func (g *SampleDataGenerator) RandomArtist() string {
	return Artists[g.rng.Intn(len(Artists))]
}

// RandomGenre returns a random genre label.
func (g *SampleDataGenerator) RandomGenre() string {
	return Genres[g.rng.Intn(len(Genres))]
}

// GenerateTrackTitle generates a fictional two-word track title.
func (g *SampleDataGenerator) GenerateTrackTitle() string {
	lead := TitleLeads[g.rng.Intn(len(TitleLeads))]
	tail := TitleTails[g.rng.Intn(len(TitleTails))]
	return fmt.Sprintf("%s %s", lead, tail)
}

// GenerateOptions configures track generation.
type GenerateOptions struct {
	CachedRatio    float64 // Ratio of tracks with cached audio (0.0-1.0)
	MinDurationSec float64 // Shortest generated duration
	MaxDurationSec float64 // Longest generated duration
	AudioURLBase   string  // Base URL for source audio (defaults to example.com)
	ArtworkURLBase string  // Base URL for artwork (defaults to art.example.com)
	CacheDir       string  // Directory used for cached file paths
}

// DefaultGenerateOptions returns default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		CachedRatio:    0.5,
		MinDurationSec: 150,
		MaxDurationSec: 330,
		AudioURLBase:   "https://audio.example.com/files",
		ArtworkURLBase: "https://art.example.com/covers",
		CacheDir:       "/tmp/mixarr-test/tracks",
	}
}

// GenerateSampleTracks generates multiple sample tracks for testing.
func (g *SampleDataGenerator) GenerateSampleTracks(count int, opts GenerateOptions) []SampleTrack {
	tracks := make([]SampleTrack, count)

	for i := 0; i < count; i++ {
		span := opts.MaxDurationSec - opts.MinDurationSec
		if span < 0 {
			span = 0
		}
		duration := opts.MinDurationSec + g.rng.Float64()*span

		track := SampleTrack{
			Artist:      g.RandomArtist(),
			Title:       g.GenerateTrackTitle(),
			ReleaseDate: fmt.Sprintf("%d", 1970+g.rng.Intn(55)),
			DurationSec: duration,
			SourceURL:   fmt.Sprintf("%s/%d.mp3", opts.AudioURLBase, i+1),
			ArtworkURL:  fmt.Sprintf("%s/%d.jpg", opts.ArtworkURLBase, i+1),
		}

		if g.rng.Float64() < opts.CachedRatio {
			track.LocalPath = fmt.Sprintf("%s/track%03d.mp3", opts.CacheDir, i+1)
			track.SizeBytes = int64(duration * 40000) // ~320kbps
		}

		tracks[i] = track
	}

	return tracks
}

// GenerateCachedTracks generates tracks that all have cached audio.
func (g *SampleDataGenerator) GenerateCachedTracks(count int) []SampleTrack {
	opts := DefaultGenerateOptions()
	opts.CachedRatio = 1.0
	return g.GenerateSampleTracks(count, opts)
}

// GenerateUncachedTracks generates tracks without any cached audio.
func (g *SampleDataGenerator) GenerateUncachedTracks(count int) []SampleTrack {
	opts := DefaultGenerateOptions()
	opts.CachedRatio = 0.0
	return g.GenerateSampleTracks(count, opts)
}

// GenerateFeatures generates plausible audio features for a track.
func (g *SampleDataGenerator) GenerateFeatures(trackID models.UUID) *models.TrackFeatures {
	return &models.TrackFeatures{
		TrackID:          trackID,
		Acousticness:     g.rng.Float64(),
		Danceability:     g.rng.Float64(),
		Energy:           g.rng.Float64(),
		Instrumentalness: g.rng.Float64(),
		Key:              g.rng.Intn(12),
		Mode:             g.rng.Intn(2),
		Liveness:         g.rng.Float64() * 0.5,
		Loudness:         -14 + (g.rng.Float64()-0.5)*8,
		Speechiness:      g.rng.Float64() * 0.3,
		Tempo:            70 + g.rng.Float64()*110,
		TimeSignature:    4,
		Valence:          g.rng.Float64(),
	}
}

// GenerateLyrics generates a plausible lyric analysis for a track.
func (g *SampleDataGenerator) GenerateLyrics(trackID models.UUID) *models.LyricsAnalysis {
	themes := models.StringList{
		LyricThemes[g.rng.Intn(len(LyricThemes))],
		LyricThemes[g.rng.Intn(len(LyricThemes))],
	}
	moods := models.StringList{
		LyricMoods[g.rng.Intn(len(LyricMoods))],
	}
	return &models.LyricsAnalysis{
		TrackID:                 trackID,
		Themes:                  themes,
		Moods:                   moods,
		NarrativeStyle:          NarrativeStyles[g.rng.Intn(len(NarrativeStyles))],
		EmotionalIntensityScore: g.rng.Float64(),
		ImageryScore:            g.rng.Float64(),
		ComplexityScore:         g.rng.Float64(),
		RhymeSchemeScore:        g.rng.Float64(),
		RepetitivenessScore:     g.rng.Float64(),
	}
}

// GenerateSession generates an active continuous session.
func (g *SampleDataGenerator) GenerateSession() *models.Session {
	return &models.Session{
		ID:        models.NewUUID(),
		StartedAt: models.Now(),
		Mode:      models.SessionModeContinuous,
	}
}
