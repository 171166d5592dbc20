package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTrackTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Track{}, &models.TrackFeatures{}, &models.LyricsAnalysis{})
	require.NoError(t, err)

	return db
}

func newCachedTrack(artist, title string, sizeBytes int64, lastPlayed *time.Time) *models.Track {
	path := fmt.Sprintf("/cache/%s-%s.mp3", artist, title)
	track := &models.Track{
		Title:       title,
		Artist:      artist,
		DurationSec: 200,
	}
	track.MarkCached(path, sizeBytes)
	track.LastPlayedAt = lastPlayed
	return track
}

func TestTrackRepo_CreateAndGet(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := &models.Track{
		Title:       "One More Time",
		Artist:      "Daft Punk",
		DurationSec: 320,
	}

	err := repo.Create(ctx, track)
	require.NoError(t, err)
	assert.False(t, track.ID.IsZero())

	t.Run("existing track", func(t *testing.T) {
		found, err := repo.GetByID(ctx, track.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, track.Title, found.Title)
		assert.Equal(t, track.Artist, found.Artist)
		assert.False(t, found.IsCached())
	})

	t.Run("non-existent track", func(t *testing.T) {
		found, err := repo.GetByID(ctx, models.NewUUID())
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestTrackRepo_GetByArtistTitle(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := &models.Track{Title: "Windowlicker", Artist: "Aphex Twin", DurationSec: 367}
	require.NoError(t, repo.Create(ctx, track))

	found, err := repo.GetByArtistTitle(ctx, "Aphex Twin", "Windowlicker")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, track.ID, found.ID)

	missing, err := repo.GetByArtistTitle(ctx, "Aphex Twin", "Nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTrackRepo_Upsert(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	t.Run("creates when missing", func(t *testing.T) {
		track := &models.Track{Title: "Flim", Artist: "Aphex Twin", DurationSec: 177}
		require.NoError(t, repo.Upsert(ctx, track))
		assert.False(t, track.ID.IsZero())
	})

	t.Run("merges into existing row", func(t *testing.T) {
		played := time.Now().Add(-time.Hour)
		existing := newCachedTrack("Moderat", "A New Error", 9_000_000, &played)
		existing.PlayCount = 4
		require.NoError(t, repo.Create(ctx, existing))

		// Fresh metadata arrives without cache or play state
		incoming := &models.Track{
			Title:       "A New Error",
			Artist:      "Moderat",
			ReleaseDate: "2009-04-17",
			DurationSec: 364,
		}
		require.NoError(t, repo.Upsert(ctx, incoming))

		assert.Equal(t, existing.ID, incoming.ID, "upsert should adopt the existing row's ID")

		merged, err := repo.GetByID(ctx, existing.ID)
		require.NoError(t, err)
		require.NotNil(t, merged)
		assert.Equal(t, "2009-04-17", merged.ReleaseDate, "new metadata should win")
		assert.Equal(t, 4, merged.PlayCount, "play state should survive")
		assert.True(t, merged.IsCached(), "cache state should survive")
		assert.InDelta(t, 364, merged.DurationSec, 0.01)
	})
}

func TestTrackRepo_CachedCandidates(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-2 * time.Hour)
	recent := now.Add(-10 * time.Minute)

	// Unplayed cached track: play_count 0, never played
	fresh := newCachedTrack("Bicep", "Glue", 1_000_000, nil)
	// Played once, long ago
	stale := newCachedTrack("Bonobo", "Kerala", 1_000_000, &old)
	stale.PlayCount = 1
	// Played often and recently
	worn := newCachedTrack("Caribou", "Odessa", 1_000_000, &recent)
	worn.PlayCount = 7
	// Not cached at all: must never appear
	uncached := &models.Track{Title: "Uncached", Artist: "Nobody", DurationSec: 100}

	for _, track := range []*models.Track{worn, fresh, stale, uncached} {
		require.NoError(t, repo.Create(ctx, track))
	}

	t.Run("ordering prefers unplayed then least played", func(t *testing.T) {
		candidates, err := repo.CachedCandidates(ctx, 10, nil)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		assert.Equal(t, fresh.ID, candidates[0].ID)
		assert.Equal(t, stale.ID, candidates[1].ID)
		assert.Equal(t, worn.ID, candidates[2].ID)
	})

	t.Run("exclusion removes given IDs", func(t *testing.T) {
		candidates, err := repo.CachedCandidates(ctx, 10, []models.UUID{fresh.ID})
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, stale.ID, candidates[0].ID)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		candidates, err := repo.CachedCandidates(ctx, 1, nil)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, fresh.ID, candidates[0].ID)
	})
}

func TestTrackRepo_IncrementPlayCount(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := &models.Track{Title: "Gantz Graf", Artist: "Autechre", DurationSec: 238}
	require.NoError(t, repo.Create(ctx, track))
	require.Nil(t, track.LastPlayedAt)

	require.NoError(t, repo.IncrementPlayCount(ctx, track.ID))
	require.NoError(t, repo.IncrementPlayCount(ctx, track.ID))

	found, err := repo.GetByID(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.PlayCount)
	require.NotNil(t, found.LastPlayedAt, "increment should stamp last_played_at")
	assert.WithinDuration(t, time.Now(), *found.LastPlayedAt, 5*time.Second)
}

func TestTrackRepo_SetAndClearCached(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := &models.Track{Title: "Roygbiv", Artist: "Boards of Canada", DurationSec: 143}
	require.NoError(t, repo.Create(ctx, track))

	require.NoError(t, repo.SetCached(ctx, track.ID, "/cache/roygbiv.mp3", 5_500_000))

	found, err := repo.GetByID(ctx, track.ID)
	require.NoError(t, err)
	require.True(t, found.IsCached())
	assert.EqualValues(t, 5_500_000, found.CachedBytes())

	require.NoError(t, repo.ClearCached(ctx, track.ID))

	found, err = repo.GetByID(ctx, track.ID)
	require.NoError(t, err)
	assert.False(t, found.IsCached())
	assert.Nil(t, found.FilesizeBytes)
}

func TestTrackRepo_TotalCachedBytes(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	total, err := repo.TotalCachedBytes(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total, "empty catalog sums to zero")

	require.NoError(t, repo.Create(ctx, newCachedTrack("A", "One", 3_000_000, nil)))
	require.NoError(t, repo.Create(ctx, newCachedTrack("B", "Two", 4_000_000, nil)))
	require.NoError(t, repo.Create(ctx, &models.Track{Title: "Three", Artist: "C", DurationSec: 60}))

	total, err = repo.TotalCachedBytes(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7_000_000, total)
}

func TestTrackRepo_EvictTo(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	const gigabyte = int64(1_000_000_000)

	// 60 cached tracks of 1 GB each with ascending play_count 0..59
	played := time.Now().Add(-time.Hour)
	var leastPlayed []models.UUID
	for i := 0; i < 60; i++ {
		track := newCachedTrack("Artist", fmt.Sprintf("Track %02d", i), gigabyte, &played)
		track.PlayCount = i
		require.NoError(t, repo.Create(ctx, track))
		if i < 10 {
			leastPlayed = append(leastPlayed, track.ID)
		}
	}

	evicted, err := repo.EvictTo(ctx, 50*gigabyte)
	require.NoError(t, err)
	require.Len(t, evicted, 10, "60 GB cached with a 50 GB target should evict exactly 10")

	evictedIDs := make([]models.UUID, len(evicted))
	for i, track := range evicted {
		evictedIDs[i] = track.ID
		assert.NotNil(t, track.LocalPath, "evicted result should carry the former path for file cleanup")
	}
	assert.Equal(t, leastPlayed, evictedIDs, "the 10 tracks with lowest play_count should go first")

	total, err := repo.TotalCachedBytes(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, total, 50*gigabyte)

	// Evicted rows survive as metadata with cache state cleared
	first, err := repo.GetByID(ctx, leastPlayed[0])
	require.NoError(t, err)
	require.NotNil(t, first, "eviction must not delete the track row")
	assert.False(t, first.IsCached())
}

func TestTrackRepo_EvictTo_TiebreakByLastPlayed(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	const gigabyte = int64(1_000_000_000)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	// Same play_count; never-played evicts first, then oldest play
	playedOld := newCachedTrack("X", "Played Old", gigabyte, &old)
	playedOld.PlayCount = 1
	playedRecent := newCachedTrack("Y", "Played Recent", gigabyte, &recent)
	playedRecent.PlayCount = 1
	neverPlayed := newCachedTrack("Z", "Never Played", gigabyte, nil)
	neverPlayed.PlayCount = 1

	for _, track := range []*models.Track{playedRecent, neverPlayed, playedOld} {
		require.NoError(t, repo.Create(ctx, track))
	}

	evicted, err := repo.EvictTo(ctx, gigabyte)
	require.NoError(t, err)
	require.Len(t, evicted, 2)
	assert.Equal(t, neverPlayed.ID, evicted[0].ID)
	assert.Equal(t, playedOld.ID, evicted[1].ID)

	survivor, err := repo.GetByID(ctx, playedRecent.ID)
	require.NoError(t, err)
	assert.True(t, survivor.IsCached())
}

func TestTrackRepo_EvictTo_NoopWhenUnderTarget(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCachedTrack("A", "Small", 1000, nil)))

	evicted, err := repo.EvictTo(ctx, 1_000_000)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}

func TestTrackFeaturesRepo_Roundtrip(t *testing.T) {
	db := setupTrackTestDB(t)
	trackRepo := NewTrackRepository(db)
	featuresRepo := NewTrackFeaturesRepository(db)
	ctx := context.Background()

	track := &models.Track{Title: "Midnight City", Artist: "M83", DurationSec: 244}
	require.NoError(t, trackRepo.Create(ctx, track))

	missing, err := featuresRepo.Get(ctx, track.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	features := &models.TrackFeatures{
		TrackID:       track.ID,
		Energy:        0.92,
		Danceability:  0.71,
		Tempo:         105.0,
		Key:           5,
		Mode:          1,
		TimeSignature: 4,
		Valence:       0.63,
	}
	require.NoError(t, featuresRepo.Upsert(ctx, features))

	found, err := featuresRepo.Get(ctx, track.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.InDelta(t, 0.92, found.Energy, 0.001)
	assert.InDelta(t, 105.0, found.Tempo, 0.001)

	// Second upsert replaces
	features.Energy = 0.5
	require.NoError(t, featuresRepo.Upsert(ctx, features))

	found, err = featuresRepo.Get(ctx, track.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, found.Energy, 0.001)
}

func TestLyricsAnalysisRepo_Roundtrip(t *testing.T) {
	db := setupTrackTestDB(t)
	trackRepo := NewTrackRepository(db)
	lyricsRepo := NewLyricsAnalysisRepository(db)
	ctx := context.Background()

	track := &models.Track{Title: "Hurt", Artist: "Johnny Cash", DurationSec: 218}
	require.NoError(t, trackRepo.Create(ctx, track))

	analysis := &models.LyricsAnalysis{
		TrackID:                 track.ID,
		Themes:                  models.StringList{"regret", "mortality"},
		Moods:                   models.StringList{"somber"},
		NarrativeStyle:          "first-person",
		EmotionalIntensityScore: 0.95,
	}
	require.NoError(t, lyricsRepo.Upsert(ctx, analysis))

	found, err := lyricsRepo.Get(ctx, track.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Themes.Contains("regret"))
	assert.Equal(t, "first-person", found.NarrativeStyle)
	assert.InDelta(t, 0.95, found.EmotionalIntensityScore, 0.001)
}
