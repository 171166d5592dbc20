// Package persistmetadata implements the catalog enrichment stage: after
// the opening track is fetched, pull its full metadata, audio features,
// lyrics analysis, and cover art into the local catalog.
package persistmetadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/storage"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "persist_metadata"
	// StageName is the human-readable name for this stage.
	StageName = "Persist Metadata"
)

// maxArtworkBytes caps cover art downloads.
const maxArtworkBytes = 10 << 20

// popularityPlatform is the streaming platform popularity is read from.
const popularityPlatform = "spotify"

// Stage enriches the catalog row of the incoming track. Everything here is
// best effort: a track with thin metadata still plays, so failures are
// recorded as non-fatal errors and an unavailable catalog skips the stage
// silently.
type Stage struct {
	shared.BaseStage
	trackRepo   repository.TrackRepository
	featureRepo repository.TrackFeaturesRepository
	lyricsRepo  repository.LyricsAnalysisRepository
	metadata    provider.MetadataProvider
	art         *storage.ArtCache
	client      *http.Client
	logger      *slog.Logger
}

// New creates a new metadata persistence stage.
func New(
	trackRepo repository.TrackRepository,
	featureRepo repository.TrackFeaturesRepository,
	lyricsRepo repository.LyricsAnalysisRepository,
	metadata provider.MetadataProvider,
	art *storage.ArtCache,
	client *http.Client,
) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName, core.PhaseFetching),
		trackRepo:   trackRepo,
		featureRepo: featureRepo,
		lyricsRepo:  lyricsRepo,
		metadata:    metadata,
		art:         art,
		client:      client,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.TrackRepo, deps.FeatureRepo, deps.LyricsRepo, deps.Metadata, deps.Art, deps.ArtClient)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute enriches the incoming track's catalog records.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	track := state.TrackB
	if track == nil {
		s.log(ctx, slog.LevelWarn, "no incoming track, nothing to enrich")
		return result, nil
	}

	id := track.ID.String()
	upserts := 0

	meta, err := s.metadata.GetMetadata(ctx, id)
	switch {
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelDebug, "metadata catalog unavailable, skipping enrichment")
		return result, nil
	case err != nil:
		state.AddError(fmt.Errorf("fetching metadata for %s: %w", id, err))
		s.log(ctx, slog.LevelWarn, "failed to fetch metadata",
			slog.String("track_id", id),
			slog.String("error", err.Error()))
	case meta != nil:
		s.mergeMetadata(track, meta)
		if err := s.trackRepo.Update(ctx, track); err != nil {
			state.AddError(fmt.Errorf("updating track %s: %w", id, err))
			s.log(ctx, slog.LevelWarn, "failed to update track row",
				slog.String("track_id", id),
				slog.String("error", err.Error()))
		} else {
			upserts++
		}

		if meta.Audio != nil {
			if err := s.featureRepo.Upsert(ctx, featuresFrom(track.ID, meta.Audio)); err != nil {
				state.AddError(fmt.Errorf("upserting features for %s: %w", id, err))
			} else {
				upserts++
			}
		}
	}

	lyrics, err := s.metadata.GetLyricsAnalysis(ctx, id)
	switch {
	case provider.IsUnavailable(err):
		// Lyrics analysis is a paid catalog add-on; silence is normal.
	case err != nil:
		state.AddError(fmt.Errorf("fetching lyrics analysis for %s: %w", id, err))
	case lyrics != nil:
		if err := s.lyricsRepo.Upsert(ctx, lyricsFrom(track.ID, lyrics)); err != nil {
			state.AddError(fmt.Errorf("upserting lyrics analysis for %s: %w", id, err))
		} else {
			upserts++
		}
	}

	if pop, err := s.metadata.GetPopularity(ctx, id, popularityPlatform); err == nil && pop != nil {
		s.log(ctx, slog.LevelInfo, "track popularity",
			slog.String("track_id", id),
			slog.String("platform", pop.Platform),
			slog.Float64("value", pop.Value))
	}

	if meta != nil && meta.ArtworkURL != "" {
		if artifact, ok := s.cacheArtwork(ctx, state, id, meta.ArtworkURL); ok {
			result.Artifacts = append(result.Artifacts, artifact)
		}
	}

	result.RecordsProcessed = upserts
	result.Message = fmt.Sprintf("Enriched catalog with %d records", upserts)
	return result, nil
}

// mergeMetadata folds catalog metadata into the track row without
// clobbering what the fetch already established.
func (s *Stage) mergeMetadata(track *models.Track, meta *provider.SongMetadata) {
	if meta.Title != "" {
		track.Title = meta.Title
	}
	if meta.Artist != "" {
		track.Artist = meta.Artist
	}
	if meta.ReleaseDate != "" {
		track.ReleaseDate = meta.ReleaseDate
	}
	if meta.LanguageCode != "" {
		track.LanguageCode = meta.LanguageCode
	}
	track.Explicit = meta.Explicit
	if track.DurationSec == 0 && meta.DurationSec > 0 {
		track.DurationSec = meta.DurationSec
	}
	if meta.ArtworkURL != "" {
		track.ArtworkURL = meta.ArtworkURL
	}
}

// cacheArtwork downloads the cover image and stores it in the art cache.
func (s *Stage) cacheArtwork(ctx context.Context, state *core.State, trackID, url string) (core.Artifact, bool) {
	if s.art == nil || s.client == nil {
		return core.Artifact{}, false
	}

	data, err := s.download(ctx, url)
	if err != nil {
		state.AddError(fmt.Errorf("downloading artwork for %s: %w", trackID, err))
		s.log(ctx, slog.LevelWarn, "failed to download artwork",
			slog.String("track_id", trackID),
			slog.String("url", url),
			slog.String("error", err.Error()))
		return core.Artifact{}, false
	}

	path, err := s.art.Store(trackID, data)
	if err != nil {
		state.AddError(fmt.Errorf("storing artwork for %s: %w", trackID, err))
		return core.Artifact{}, false
	}

	s.log(ctx, slog.LevelDebug, "cached artwork",
		slog.String("track_id", trackID),
		slog.Int("bytes", len(data)))

	artifact := core.NewArtifact(core.ArtifactTypeArtwork, StageID).
		WithFilePath(path).
		WithFileSize(int64(len(data)))
	return artifact, true
}

// download fetches a URL with a hard size cap.
func (s *Stage) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

// featuresFrom maps catalog audio features onto the features row.
func featuresFrom(trackID models.UUID, a *provider.AudioFeatures) *models.TrackFeatures {
	return &models.TrackFeatures{
		TrackID:          trackID,
		Acousticness:     a.Acousticness,
		Danceability:     a.Danceability,
		Energy:           a.Energy,
		Instrumentalness: a.Instrumentalness,
		Key:              a.Key,
		Mode:             a.Mode,
		Liveness:         a.Liveness,
		Loudness:         a.Loudness,
		Speechiness:      a.Speechiness,
		Tempo:            a.Tempo,
		TimeSignature:    a.TimeSignature,
		Valence:          a.Valence,
	}
}

// lyricsFrom maps the catalog's lyric analysis onto the analysis row.
func lyricsFrom(trackID models.UUID, r *provider.LyricsReport) *models.LyricsAnalysis {
	return &models.LyricsAnalysis{
		TrackID:                 trackID,
		Themes:                  r.Themes,
		Moods:                   r.Moods,
		Brands:                  r.Brands,
		Locations:               r.Locations,
		CulturalRefPeople:       r.CulturalRefPeople,
		CulturalRefNonPeople:    r.CulturalRefNonPeople,
		NarrativeStyle:          r.NarrativeStyle,
		EmotionalIntensityScore: r.EmotionalIntensity,
		ImageryScore:            r.Imagery,
		ComplexityScore:         r.Complexity,
		RhymeSchemeScore:        r.RhymeScheme,
		RepetitivenessScore:     r.Repetitiveness,
	}
}

// log logs a message if the logger is set.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
