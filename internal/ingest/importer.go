package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
)

// DefaultDelay is the pause between downloads. Bulk imports hammer the
// audio source otherwise, and sources throttle aggressive clients.
const DefaultDelay = 2 * time.Second

// Cacher downloads a track into the audio cache and records it in the
// catalog. Satisfied by cache.Manager.
type Cacher interface {
	Fetch(ctx context.Context, query, artist, title string) (*models.Track, error)
}

// Report summarizes one import run.
type Report struct {
	Imported int
	Skipped  int
	Failed   int
}

// Total returns the number of entries the run looked at.
func (r Report) Total() int {
	return r.Imported + r.Skipped + r.Failed
}

// Importer walks a seed list, downloading each entry into the cache and
// enriching the resulting catalog rows. Entries already cached under the
// same (artist, title) are skipped; individual failures are counted and
// the run continues.
type Importer struct {
	cache    Cacher
	tracks   repository.TrackRepository
	features repository.TrackFeaturesRepository
	lyrics   repository.LyricsAnalysisRepository
	metadata provider.MetadataProvider
	delay    time.Duration
	logger   *slog.Logger
}

// NewImporter creates an importer over the audio cache and track catalog.
func NewImporter(cache Cacher, tracks repository.TrackRepository) *Importer {
	return &Importer{
		cache:  cache,
		tracks: tracks,
		delay:  DefaultDelay,
		logger: slog.Default(),
	}
}

// WithMetadata enables best-effort catalog enrichment of imported tracks.
func (i *Importer) WithMetadata(metadata provider.MetadataProvider, features repository.TrackFeaturesRepository, lyrics repository.LyricsAnalysisRepository) *Importer {
	i.metadata = metadata
	i.features = features
	i.lyrics = lyrics
	return i
}

// WithDelay sets the pause between downloads. Zero disables the pause.
func (i *Importer) WithDelay(d time.Duration) *Importer {
	i.delay = d
	return i
}

// WithLogger sets a custom logger.
func (i *Importer) WithLogger(logger *slog.Logger) *Importer {
	i.logger = logger
	return i
}

// Run imports the entries in order. It returns the partial report along
// with the context error when cancelled mid-run.
func (i *Importer) Run(ctx context.Context, entries []Entry) (*Report, error) {
	report := &Report{}

	for idx, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if i.alreadyCached(ctx, entry) {
			i.logger.Debug("seed entry already cached",
				slog.String("artist", entry.Artist),
				slog.String("title", entry.Title))
			report.Skipped++
			continue
		}

		track, err := i.cache.Fetch(ctx, entry.SearchQuery(), entry.Artist, entry.Title)
		if err != nil {
			if ctx.Err() != nil {
				report.Failed++
				return report, ctx.Err()
			}
			i.logger.Warn("seed entry failed",
				slog.String("query", entry.SearchQuery()),
				slog.String("error", err.Error()))
			report.Failed++
			continue
		}
		report.Imported++

		i.enrich(ctx, track)

		i.logger.Info("seed entry imported",
			slog.String("track", track.DisplayName()),
			slog.Int("remaining", len(entries)-idx-1))

		if i.delay > 0 && idx < len(entries)-1 {
			select {
			case <-time.After(i.delay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	return report, nil
}

// alreadyCached reports whether the entry's (artist, title) pair already
// has a cached catalog row. Query-only entries always download: there is
// no pair to look up.
func (i *Importer) alreadyCached(ctx context.Context, entry Entry) bool {
	if entry.Artist == "" || entry.Title == "" {
		return false
	}
	existing, err := i.tracks.GetByArtistTitle(ctx, entry.Artist, entry.Title)
	if err != nil || existing == nil {
		return false
	}
	return existing.IsCached()
}

// enrich pulls catalog metadata for a freshly imported track. Everything
// here is best effort: a seed import with a thin catalog row still plays.
func (i *Importer) enrich(ctx context.Context, track *models.Track) {
	if i.metadata == nil {
		return
	}

	hits, err := i.metadata.Search(ctx, track.DisplayName(), 1)
	if err != nil || len(hits) == 0 {
		return
	}
	id := hits[0].ID

	meta, err := i.metadata.GetMetadata(ctx, id)
	if err == nil && meta != nil {
		mergeMetadata(track, meta)
		if err := i.tracks.Update(ctx, track); err != nil {
			i.logger.Warn("failed to update enriched track",
				slog.String("track_id", track.ID.String()),
				slog.String("error", err.Error()))
		}
		if meta.Audio != nil && i.features != nil {
			if err := i.features.Upsert(ctx, featuresFrom(track.ID, meta.Audio)); err != nil {
				i.logger.Warn("failed to upsert features",
					slog.String("track_id", track.ID.String()),
					slog.String("error", err.Error()))
			}
		}
	}

	if i.lyrics == nil {
		return
	}
	lyrics, err := i.metadata.GetLyricsAnalysis(ctx, id)
	if err != nil || lyrics == nil {
		return
	}
	if err := i.lyrics.Upsert(ctx, lyricsFrom(track.ID, lyrics)); err != nil {
		i.logger.Warn("failed to upsert lyrics analysis",
			slog.String("track_id", track.ID.String()),
			slog.String("error", err.Error()))
	}
}

// mergeMetadata folds catalog metadata into the track row without
// clobbering what the fetch already established.
func mergeMetadata(track *models.Track, meta *provider.SongMetadata) {
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
