package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
)

func setupImportTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Track{},
		&models.TrackFeatures{},
		&models.LyricsAnalysis{},
	))
	return db
}

// stubCacher records tracks in the catalog the way cache.Manager does,
// without touching the filesystem.
type stubCacher struct {
	tracks  repository.TrackRepository
	failFor map[string]error

	calls   int
	queries []string
}

func (c *stubCacher) Fetch(ctx context.Context, query, artist, title string) (*models.Track, error) {
	c.calls++
	c.queries = append(c.queries, query)

	if err, ok := c.failFor[query]; ok {
		return nil, err
	}
	if artist == "" {
		artist = "Stub Artist"
	}
	if title == "" {
		title = "Stub Title"
	}

	track := &models.Track{
		Title:       title,
		Artist:      artist,
		DurationSec: 180,
	}
	track.MarkCached("/cache/"+artist+" - "+title+".mp3", 1024)
	if err := c.tracks.Upsert(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

// stubMetadata serves one canned song for every lookup.
type stubMetadata struct {
	meta   *provider.SongMetadata
	lyrics *provider.LyricsReport

	searches int
}

func (m *stubMetadata) Search(ctx context.Context, query string, limit int) ([]provider.SongHit, error) {
	m.searches++
	if m.meta == nil {
		return nil, nil
	}
	return []provider.SongHit{{ID: m.meta.ID, Title: m.meta.Title, Artist: m.meta.Artist}}, nil
}

func (m *stubMetadata) GetMetadata(ctx context.Context, id string) (*provider.SongMetadata, error) {
	return m.meta, nil
}

func (m *stubMetadata) GetLyricsAnalysis(ctx context.Context, id string) (*provider.LyricsReport, error) {
	return m.lyrics, nil
}

func (m *stubMetadata) GetPopularity(ctx context.Context, id, platform string) (*provider.Popularity, error) {
	return nil, provider.ErrUnavailable
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImporterRun(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)
	cacher := &stubCacher{tracks: tracks}

	importer := NewImporter(cacher, tracks).WithDelay(0)

	report, err := importer.Run(context.Background(), []Entry{
		{Artist: "Daft Punk", Title: "Around the World"},
		{Query: "aphex twin avril 14th"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, report.Total())
	assert.Equal(t, 2, cacher.calls)
	assert.Equal(t, "Daft Punk Around the World", cacher.queries[0])
}

func TestImporterSkipsCachedEntries(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)

	existing := &models.Track{Title: "Around the World", Artist: "Daft Punk"}
	existing.MarkCached("/cache/existing.mp3", 2048)
	require.NoError(t, tracks.Create(context.Background(), existing))

	cacher := &stubCacher{tracks: tracks}
	importer := NewImporter(cacher, tracks).WithDelay(0)

	report, err := importer.Run(context.Background(), []Entry{
		{Artist: "Daft Punk", Title: "Around the World"},
		{Artist: "Burial", Title: "Archangel"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, cacher.calls)
}

func TestImporterCountsFailuresAndContinues(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)
	cacher := &stubCacher{
		tracks:  tracks,
		failFor: map[string]error{"broken query": errors.New("no results")},
	}

	importer := NewImporter(cacher, tracks).WithDelay(0)

	report, err := importer.Run(context.Background(), []Entry{
		{Query: "broken query"},
		{Artist: "Burial", Title: "Archangel"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, cacher.calls)
}

func TestImporterStopsOnCancel(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)
	cacher := &stubCacher{tracks: tracks}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	importer := NewImporter(cacher, tracks).WithDelay(0)
	report, err := importer.Run(ctx, []Entry{{Query: "anything"}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Total())
	assert.Equal(t, 0, cacher.calls)
}

func TestImporterDelayRespectsCancel(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)
	cacher := &stubCacher{tracks: tracks}

	ctx, cancel := context.WithCancel(context.Background())
	importer := NewImporter(cacher, tracks).WithDelay(time.Hour).WithLogger(discardLogger())

	done := make(chan struct{})
	var report *Report
	var err error
	go func() {
		report, err = importer.Run(ctx, []Entry{
			{Query: "first"},
			{Query: "second"},
		})
		close(done)
	}()

	// Let the first fetch land, then cancel during the inter-download pause.
	require.Eventually(t, func() bool { return cacher.calls >= 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("importer did not return after cancel")
	}

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Imported)
}

func TestImporterEnrichesFromCatalog(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)
	features := repository.NewTrackFeaturesRepository(db)
	lyrics := repository.NewLyricsAnalysisRepository(db)
	cacher := &stubCacher{tracks: tracks}

	meta := &stubMetadata{
		meta: &provider.SongMetadata{
			ID:           "song-1",
			Title:        "Around the World",
			Artist:       "Daft Punk",
			ReleaseDate:  "1997-03-17",
			LanguageCode: "en",
			DurationSec:  428,
			Audio:        &provider.AudioFeatures{Tempo: 121.3, Energy: 0.81},
		},
		lyrics: &provider.LyricsReport{Themes: []string{"repetition"}},
	}

	importer := NewImporter(cacher, tracks).
		WithMetadata(meta, features, lyrics).
		WithDelay(0)

	report, err := importer.Run(context.Background(), []Entry{
		{Artist: "Daft Punk", Title: "Around the World"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, meta.searches)

	stored, err := tracks.GetByArtistTitle(context.Background(), "Daft Punk", "Around the World")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "1997-03-17", stored.ReleaseDate)
	assert.Equal(t, "en", stored.LanguageCode)

	feat, err := features.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotNil(t, feat)
	assert.InDelta(t, 121.3, feat.Tempo, 0.001)

	la, err := lyrics.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotNil(t, la)
	assert.Contains(t, []string(la.Themes), "repetition")
}

func TestImporterWithoutMetadataSkipsEnrichment(t *testing.T) {
	db := setupImportTestDB(t)
	tracks := repository.NewTrackRepository(db)
	cacher := &stubCacher{tracks: tracks}

	importer := NewImporter(cacher, tracks).WithDelay(0)
	report, err := importer.Run(context.Background(), []Entry{{Query: "anything"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
}
