package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/util"
)

func setupCacheTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Track{}))
	return db
}

// stubFetcher writes a real file of the configured size into dir.
type stubFetcher struct {
	dir      string
	size     int64
	duration float64
	err      error

	calls     int
	lastQuery string
}

func (f *stubFetcher) Download(ctx context.Context, query, artist, title string) (*provider.FetchResult, error) {
	f.calls++
	f.lastQuery = query

	if f.err != nil {
		return nil, f.err
	}
	if artist == "" {
		artist = "Stub Artist"
	}
	if title == "" {
		title = "Stub Title"
	}

	path := filepath.Join(f.dir, util.TrackFilename(artist, title))
	if err := os.WriteFile(path, bytes.Repeat([]byte("a"), int(f.size)), 0o644); err != nil {
		return nil, err
	}

	return &provider.FetchResult{
		Path:        path,
		Title:       title,
		Artist:      artist,
		DurationSec: f.duration,
		SizeBytes:   f.size,
	}, nil
}

// seedCachedTrack creates a catalog row with a real cached file behind it.
func seedCachedTrack(t *testing.T, repo repository.TrackRepository, dir, artist, title string, size int64, playCount int) *models.Track {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(dir, util.TrackFilename(artist, title))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("b"), int(size)), 0o644))

	track := &models.Track{Title: title, Artist: artist, DurationSec: 180, PlayCount: playCount}
	if playCount > 0 {
		now := models.Now()
		track.LastPlayedAt = &now
	}
	require.NoError(t, repo.Create(ctx, track))
	require.NoError(t, repo.SetCached(ctx, track.ID, path, size))
	track.MarkCached(path, size)
	return track
}

func TestManager_EnsureCached_AlreadyCached(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, size: 100}
	m := NewManager(dir, 1<<20, repo, fetcher)

	track := seedCachedTrack(t, repo, dir, "Queen", "Radio Ga Ga", 100, 1)

	path, err := m.EnsureCached(context.Background(), track)
	require.NoError(t, err)
	assert.Equal(t, *track.LocalPath, path)
	assert.Zero(t, fetcher.calls, "a present file needs no fetch")
}

func TestManager_EnsureCached_Downloads(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, size: 256, duration: 212.5}
	m := NewManager(dir, 1<<20, repo, fetcher)
	ctx := context.Background()

	track := &models.Track{Title: "Take On Me", Artist: "a-ha"}
	require.NoError(t, repo.Create(ctx, track))

	path, err := m.EnsureCached(ctx, track)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "a-ha Take On Me", fetcher.lastQuery)
	assert.FileExists(t, path)

	assert.True(t, track.IsCached())
	assert.Equal(t, int64(256), track.CachedBytes())
	assert.Equal(t, 212.5, track.DurationSec, "source duration seeds an unknown one")

	stored, err := repo.GetByID(ctx, track.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsCached())
	assert.Equal(t, path, *stored.LocalPath)
}

func TestManager_EnsureCached_RefetchesMissingFile(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, size: 64}
	m := NewManager(dir, 1<<20, repo, fetcher)
	ctx := context.Background()

	track := seedCachedTrack(t, repo, dir, "Queen", "Radio Ga Ga", 100, 1)
	require.NoError(t, os.Remove(*track.LocalPath))

	path, err := m.EnsureCached(ctx, track)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls, "a vanished file forces a refetch")
	assert.FileExists(t, path)

	stored, err := repo.GetByID(ctx, track.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCached())
	assert.Equal(t, int64(64), stored.CachedBytes())
}

func TestManager_EnsureCached_FetcherUnavailable(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, err: fmt.Errorf("track fetcher: %w", provider.ErrUnavailable)}
	m := NewManager(dir, 1<<20, repo, fetcher)
	ctx := context.Background()

	track := &models.Track{Title: "Take On Me", Artist: "a-ha"}
	require.NoError(t, repo.Create(ctx, track))

	_, err := m.EnsureCached(ctx, track)
	require.Error(t, err)
	assert.True(t, provider.IsUnavailable(err), "wrapping must preserve the sentinel")
}

func TestManager_EnsureCached_NilTrack(t *testing.T) {
	m := NewManager(t.TempDir(), 0, repository.NewTrackRepository(setupCacheTestDB(t)), &stubFetcher{})

	_, err := m.EnsureCached(context.Background(), nil)
	require.Error(t, err)
}

func TestManager_Fetch(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, size: 128, duration: 199}
	m := NewManager(dir, 1<<20, repo, fetcher)
	ctx := context.Background()

	track, err := m.Fetch(ctx, "daft punk one more time", "Daft Punk", "One More Time")
	require.NoError(t, err)

	assert.Equal(t, "Daft Punk", track.Artist)
	assert.Equal(t, "One More Time", track.Title)
	assert.True(t, track.IsCached())
	assert.Equal(t, 199.0, track.DurationSec)

	stored, err := repo.GetByArtistTitle(ctx, "Daft Punk", "One More Time")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsCached())
}

func TestManager_Fetch_MergesExistingRow(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, size: 128}
	m := NewManager(dir, 1<<20, repo, fetcher)
	ctx := context.Background()

	existing := &models.Track{Title: "One More Time", Artist: "Daft Punk", PlayCount: 3}
	require.NoError(t, repo.Create(ctx, existing))

	track, err := m.Fetch(ctx, "daft punk one more time", "Daft Punk", "One More Time")
	require.NoError(t, err)

	assert.Equal(t, existing.ID, track.ID, "the fetch merges into the known row")
	assert.Equal(t, 3, track.PlayCount, "play state survives the merge")
	assert.True(t, track.IsCached())
}

func TestManager_EnforceBudget(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	m := NewManager(dir, 1000, repo, &stubFetcher{dir: dir})
	ctx := context.Background()

	cold := seedCachedTrack(t, repo, dir, "Artist A", "Rarely Played", 400, 1)
	warm := seedCachedTrack(t, repo, dir, "Artist B", "Often Played", 400, 5)
	hot := seedCachedTrack(t, repo, dir, "Artist C", "Always Played", 400, 9)

	evicted, freed, err := m.EnforceBudget(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, evicted)
	assert.Equal(t, int64(400), freed)

	assert.NoFileExists(t, filepath.Join(dir, util.TrackFilename("Artist A", "Rarely Played")))
	assert.FileExists(t, filepath.Join(dir, util.TrackFilename("Artist B", "Often Played")))
	assert.FileExists(t, filepath.Join(dir, util.TrackFilename("Artist C", "Always Played")))

	stored, err := repo.GetByID(ctx, cold.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsCached(), "eviction clears the record but keeps the row")

	for _, id := range []models.UUID{warm.ID, hot.ID} {
		stored, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.IsCached())
	}

	total, err := repo.TotalCachedBytes(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, total, int64(1000))
}

func TestManager_EnforceBudget_UnderBudget(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	m := NewManager(dir, 1000, repo, &stubFetcher{dir: dir})

	seedCachedTrack(t, repo, dir, "Artist A", "Small", 200, 0)

	evicted, freed, err := m.EnforceBudget(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)
	assert.Zero(t, freed)
	assert.FileExists(t, filepath.Join(dir, util.TrackFilename("Artist A", "Small")))
}

func TestManager_EnforceBudget_Disabled(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	m := NewManager(dir, 0, repo, &stubFetcher{dir: dir})

	seedCachedTrack(t, repo, dir, "Artist A", "Huge", 1<<20, 0)

	evicted, _, err := m.EnforceBudget(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted, "no budget means no eviction")
}

func TestManager_Fetch_StaysWithinBudget(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	fetcher := &stubFetcher{dir: dir, size: 400}
	m := NewManager(dir, 1000, repo, fetcher)
	ctx := context.Background()

	seedCachedTrack(t, repo, dir, "Artist A", "Old One", 800, 2)

	_, err := m.Fetch(ctx, "artist b new one", "Artist B", "New One")
	require.NoError(t, err)

	total, err := repo.TotalCachedBytes(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, total, int64(1000), "the budget holds after every fetch")
}

func TestManager_Stats(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewTrackRepository(setupCacheTestDB(t))
	m := NewManager(dir, 1000, repo, &stubFetcher{dir: dir})
	ctx := context.Background()

	seedCachedTrack(t, repo, dir, "Artist A", "First", 250, 1)
	seedCachedTrack(t, repo, dir, "Artist B", "Second", 250, 2)

	uncached := &models.Track{Title: "Evicted", Artist: "Artist C"}
	require.NoError(t, repo.Create(ctx, uncached))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(500), stats.UsedBytes)
	assert.Equal(t, int64(1000), stats.LimitBytes)
	assert.Equal(t, 50.0, stats.UsagePercent)
	assert.Equal(t, 2, stats.CachedTracks)
}
