package provider

import (
	"context"
	"fmt"
)

// No-op providers stand in when a capability is not configured. Every
// operation reports ErrUnavailable so callers take their fallback paths
// without nil checks.

type NoopMetadataProvider struct{}

func (NoopMetadataProvider) Search(ctx context.Context, query string, limit int) ([]SongHit, error) {
	return nil, fmt.Errorf("metadata provider: %w", ErrUnavailable)
}

func (NoopMetadataProvider) GetMetadata(ctx context.Context, id string) (*SongMetadata, error) {
	return nil, fmt.Errorf("metadata provider: %w", ErrUnavailable)
}

func (NoopMetadataProvider) GetLyricsAnalysis(ctx context.Context, id string) (*LyricsReport, error) {
	return nil, fmt.Errorf("metadata provider: %w", ErrUnavailable)
}

func (NoopMetadataProvider) GetPopularity(ctx context.Context, id, platform string) (*Popularity, error) {
	return nil, fmt.Errorf("metadata provider: %w", ErrUnavailable)
}

type NoopPlanner struct{}

func (NoopPlanner) Chat(ctx context.Context, messages []ChatMessage, temperature float64, reasoningBudget int, jsonMode bool) (*ChatResult, error) {
	return nil, fmt.Errorf("planner llm: %w", ErrUnavailable)
}

type NoopVoice struct{}

func (NoopVoice) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error) {
	return "", fmt.Errorf("voice synthesizer: %w", ErrUnavailable)
}

type NoopFetcher struct{}

func (NoopFetcher) Download(ctx context.Context, query, artist, title string) (*FetchResult, error) {
	return nil, fmt.Errorf("track fetcher: %w", ErrUnavailable)
}

var (
	_ MetadataProvider = NoopMetadataProvider{}
	_ PlannerLLM       = NoopPlanner{}
	_ VoiceSynthesizer = NoopVoice{}
	_ TrackFetcher     = NoopFetcher{}
)
