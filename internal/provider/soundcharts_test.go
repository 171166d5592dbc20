package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoundchartsClient_Available(t *testing.T) {
	assert.True(t, NewSoundchartsClient("app", "key").Available())
	assert.False(t, NewSoundchartsClient("", "key").Available())
	assert.False(t, NewSoundchartsClient("app", "").Available())
}

func TestSoundchartsClient_Unavailable(t *testing.T) {
	c := NewSoundchartsClient("", "")

	_, err := c.Search(context.Background(), "queen", 5)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))

	_, err = c.GetMetadata(context.Background(), "uuid-1")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestSoundchartsClient_Search(t *testing.T) {
	var gotPath, gotQuery string
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		gotHeaders = r.Header.Clone()

		_, _ = w.Write([]byte(`{
			"items": [
				{
					"uuid": "7d534228-5165-11e9-9375-549f35161576",
					"name": "Bohemian Rhapsody",
					"creditName": "Queen",
					"releaseDate": "1975-10-31T00:00:00+00:00"
				},
				{
					"uuid": "11111111-2222-3333-4444-555555555555",
					"name": "Radio Ga Ga",
					"creditName": "",
					"artist": {"name": "Queen"}
				}
			]
		}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app-id", "api-key").WithBaseURL(server.URL)

	hits, err := c.Search(context.Background(), "bohemian rhapsody", 2)
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/song/search/bohemian%20rhapsody", gotPath)
	assert.Equal(t, "limit=2", gotQuery)
	assert.Equal(t, "app-id", gotHeaders.Get("x-app-id"))
	assert.Equal(t, "api-key", gotHeaders.Get("x-api-key"))

	require.Len(t, hits, 2)
	assert.Equal(t, "7d534228-5165-11e9-9375-549f35161576", hits[0].ID)
	assert.Equal(t, "Bohemian Rhapsody", hits[0].Title)
	assert.Equal(t, "Queen", hits[0].Artist)
	assert.Equal(t, "1975-10-31T00:00:00+00:00", hits[0].ReleaseDate)
	assert.Equal(t, "Queen", hits[1].Artist, "artist falls back to the nested artist object")
}

func TestSoundchartsClient_Search_DefaultLimit(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	hits, err := c.Search(context.Background(), "queen", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, "limit=5", gotQuery)
}

func TestSoundchartsClient_GetMetadata(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"object": {
				"uuid": "7d534228-5165-11e9-9375-549f35161576",
				"name": "Bohemian Rhapsody",
				"creditName": "Queen",
				"releaseDate": "1975-10-31T00:00:00+00:00",
				"language": "en",
				"explicit": false,
				"duration": 354,
				"imageUrl": "https://assets.example.com/bohemian.jpg",
				"audio": {
					"acousticness": 0.27,
					"danceability": 0.39,
					"energy": 0.9,
					"instrumentalness": 0,
					"key": 0,
					"mode": 0,
					"liveness": 0.24,
					"loudness": -9.96,
					"speechiness": 0.05,
					"tempo": 143.88,
					"time_signature": 4,
					"valence": 0.22
				}
			}
		}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	meta, err := c.GetMetadata(context.Background(), "7d534228-5165-11e9-9375-549f35161576")
	require.NoError(t, err)

	assert.Equal(t, "/api/v2.25/song/7d534228-5165-11e9-9375-549f35161576", gotPath)
	assert.Equal(t, "Bohemian Rhapsody", meta.Title)
	assert.Equal(t, "Queen", meta.Artist)
	assert.Equal(t, "en", meta.LanguageCode)
	assert.False(t, meta.Explicit)
	assert.Equal(t, 354.0, meta.DurationSec)
	assert.Equal(t, "https://assets.example.com/bohemian.jpg", meta.ArtworkURL)

	require.NotNil(t, meta.Audio)
	assert.Equal(t, 143.88, meta.Audio.Tempo)
	assert.Equal(t, 0.9, meta.Audio.Energy)
	assert.Equal(t, 4, meta.Audio.TimeSignature)
}

func TestSoundchartsClient_GetMetadata_NoAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": {"name": "Obscure B-Side", "creditName": "Someone"}}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	meta, err := c.GetMetadata(context.Background(), "uuid-9")
	require.NoError(t, err)

	assert.Nil(t, meta.Audio, "unanalyzed songs have no audio features")
	assert.Equal(t, "uuid-9", meta.ID, "missing uuid falls back to the requested id")
}

func TestSoundchartsClient_GetLyricsAnalysis(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"object": {
				"themes": ["confession", "fate"],
				"moods": ["dramatic", "melancholic"],
				"brands": [],
				"locations": [],
				"cultural_references": {
					"people": ["Galileo", "Figaro"],
					"non_people": ["Bismillah"]
				},
				"narrative_style": "operatic first person",
				"scores": {
					"emotional_intensity": 0.95,
					"imagery": 0.8,
					"complexity": 0.9,
					"rhyme_scheme": 0.4,
					"repetitiveness": 0.3
				}
			}
		}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	report, err := c.GetLyricsAnalysis(context.Background(), "uuid-1")
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/song/uuid-1/lyrics-analysis", gotPath)
	assert.Equal(t, []string{"confession", "fate"}, report.Themes)
	assert.Equal(t, []string{"dramatic", "melancholic"}, report.Moods)
	assert.Equal(t, []string{"Galileo", "Figaro"}, report.CulturalRefPeople)
	assert.Equal(t, []string{"Bismillah"}, report.CulturalRefNonPeople)
	assert.Equal(t, "operatic first person", report.NarrativeStyle)
	assert.Equal(t, 0.95, report.EmotionalIntensity)
	assert.Equal(t, 0.3, report.Repetitiveness)
}

func TestSoundchartsClient_GetPopularity(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"object": {"platform": "spotify", "value": 84, "date": "2025-06-01"}}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	pop, err := c.GetPopularity(context.Background(), "uuid-1", "")
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/song/uuid-1/popularity/spotify", gotPath, "empty platform uses the default")
	assert.Equal(t, "spotify", pop.Platform)
	assert.Equal(t, 84.0, pop.Value)
	assert.Equal(t, "2025-06-01", pop.Date)
}

func TestSoundchartsClient_GetPopularity_PlatformFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": {"value": 61}}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	pop, err := c.GetPopularity(context.Background(), "uuid-1", "deezer")
	require.NoError(t, err)
	assert.Equal(t, "deezer", pop.Platform, "missing platform in the response echoes the requested one")
}

func TestSoundchartsClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors": [{"message": "song not found"}]}`))
	}))
	defer server.Close()

	c := NewSoundchartsClient("app", "key").WithBaseURL(server.URL)

	_, err := c.GetMetadata(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "song not found")
	assert.False(t, IsUnavailable(err))
}
