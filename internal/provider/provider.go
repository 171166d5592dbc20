// Package provider defines the capability interfaces the planning pipeline
// depends on: track metadata lookup, LLM planning, voice synthesis, and
// track fetching. Each capability has a real adapter and a no-op
// implementation; a capability that is not configured reports ErrUnavailable
// rather than failing, and callers fall back (skip the voice, pick the first
// candidate, use the default transition).
package provider

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrUnavailable marks a capability that is not configured or cannot run.
// It is a sentinel, not a failure: stages that see it degrade gracefully
// instead of aborting the segment.
var ErrUnavailable = errors.New("capability unavailable")

// IsUnavailable reports whether err, or anything it wraps, is ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// MetadataProvider looks up songs and their analysis in an external catalog.
type MetadataProvider interface {
	// Search finds songs by free-text query. An empty result is normal and
	// distinct from ErrUnavailable.
	Search(ctx context.Context, query string, limit int) ([]SongHit, error)

	// GetMetadata returns the full metadata record for a song, including
	// audio features when the catalog has analyzed it.
	GetMetadata(ctx context.Context, id string) (*SongMetadata, error)

	// GetLyricsAnalysis returns the lyric-level analysis for a song.
	GetLyricsAnalysis(ctx context.Context, id string) (*LyricsReport, error)

	// GetPopularity returns the song's popularity on a streaming platform.
	// An empty platform selects the provider's default.
	GetPopularity(ctx context.Context, id, platform string) (*Popularity, error)
}

// PlannerLLM is a chat-completion model used for planning decisions. The
// Planner facade builds the stage prompts; implementations only move
// messages over the wire.
type PlannerLLM interface {
	// Chat sends the messages and returns the first completion. A positive
	// reasoningBudget caps the model's reasoning tokens. With jsonMode the
	// model is constrained to a JSON object response and the system message
	// gains an explicit JSON-only instruction.
	Chat(ctx context.Context, messages []ChatMessage, temperature float64, reasoningBudget int, jsonMode bool) (*ChatResult, error)
}

// VoiceSynthesizer turns a text script into an audio file.
type VoiceSynthesizer interface {
	// Synthesize renders text to speech and returns the path of the written
	// audio file.
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error)
}

// TrackFetcher downloads a track's audio into the cache.
type TrackFetcher interface {
	// Download resolves query against the fetcher's source and downloads
	// the audio as MP3. artist and title, when non-empty, pin the cache
	// filename; otherwise they are taken from the source's metadata.
	Download(ctx context.Context, query, artist, title string) (*FetchResult, error)
}

// Chat message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one turn of a chat-completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatUsage is the token accounting a completion reports.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the first completion of a chat request.
type ChatResult struct {
	// Content is the completion text.
	Content string

	// Model is the model that actually served the request, which may be a
	// more precise identifier than the one requested.
	Model string

	// FinishReason explains why generation stopped ("stop", "length", ...).
	FinishReason string

	// Usage is the token accounting for the call.
	Usage ChatUsage
}

// SynthesisOptions tunes one synthesis call. Zero values select the
// synthesizer's configured defaults.
type SynthesisOptions struct {
	// Stability is the voice stability in (0, 1].
	Stability float64

	// Similarity is the voice similarity boost in (0, 1].
	Similarity float64

	// Filename names the output file inside the synthesizer's output
	// directory. Empty auto-generates "tts_{8 hex}.mp3".
	Filename string

	// Dir overrides the synthesizer's output directory for this call.
	Dir string
}

// FetchResult describes a completed track download.
type FetchResult struct {
	// Path is the absolute path of the downloaded MP3.
	Path string

	// Title and Artist are the resolved track credits, either as passed to
	// Download or as reported by the source.
	Title  string
	Artist string

	// DurationSec is the duration the source reported. Segment timing uses
	// a probed duration instead; this one seeds the catalog row.
	DurationSec float64

	// SizeBytes is the size of the written file.
	SizeBytes int64

	// SourceID and SourceURL identify where the audio came from.
	SourceID  string
	SourceURL string

	// ThumbnailURL is the source's cover image, if any.
	ThumbnailURL string
}

// SongHit is one search result from the metadata catalog.
type SongHit struct {
	ID          string
	Title       string
	Artist      string
	ReleaseDate string
}

// SongMetadata is the catalog's full record for a song.
type SongMetadata struct {
	ID           string
	Title        string
	Artist       string
	ReleaseDate  string
	LanguageCode string
	Explicit     bool
	DurationSec  float64
	ArtworkURL   string

	// Audio holds the audio analysis features, nil when the catalog has
	// not analyzed the song.
	Audio *AudioFeatures
}

// AudioFeatures are the audio analysis values the catalog reports. The
// field set and scales match the catalog's wire format, which is why the
// struct carries JSON tags: adapters decode into it directly.
type AudioFeatures struct {
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	Valence          float64 `json:"valence"`
}

// LyricsReport is the catalog's lyric-level analysis for a song.
type LyricsReport struct {
	Themes               []string
	Moods                []string
	Brands               []string
	Locations            []string
	CulturalRefPeople    []string
	CulturalRefNonPeople []string
	NarrativeStyle       string

	EmotionalIntensity float64
	Imagery            float64
	Complexity         float64
	RhymeScheme        float64
	Repetitiveness     float64
}

// Popularity is a song's standing on one streaming platform.
type Popularity struct {
	Platform string
	Value    float64
	Date     string
}

// Shared HTTP constants for the adapters in this package.
const (
	headerUserAgent   = "User-Agent"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	maxErrorBodyReadSize = 1024
)

// errorBody reads a bounded prefix of an error response body so status
// errors carry something useful.
func errorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyReadSize))
	return strings.TrimSpace(string(b))
}
