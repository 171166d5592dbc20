package core

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestFactory_Create(t *testing.T) {
	factory := NewFactory(&Dependencies{Logger: testLogger()}, true)
	factory.RegisterStage(func(d *Dependencies) Stage {
		return &fakeStage{id: "select", name: "Select", phase: PhaseSelecting}
	})
	factory.RegisterStage(func(d *Dependencies) Stage {
		return &fakeStage{id: "render", name: "Render", phase: PhaseRendering}
	})

	orch, err := factory.Create(newTestSession(), 0)
	require.NoError(t, err)

	require.Len(t, orch.Stages(), 2)
	assert.Equal(t, "select", orch.Stages()[0].ID())
	assert.Equal(t, "render", orch.Stages()[1].ID())
	assert.Equal(t, 0, orch.State().SegmentIndex)
	assert.True(t, orch.State().Bootstrap)
	assert.NotEmpty(t, orch.State().InvocationID)
}

func TestFactory_Create_NilSession(t *testing.T) {
	factory := NewFactory(&Dependencies{Logger: testLogger()}, false)

	_, err := factory.Create(nil, 0)
	require.Error(t, err)

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "session", confErr.Field)
}

func TestBuilder_MissingDependencies(t *testing.T) {
	_, err := NewBuilder().Build()
	require.Error(t, err)

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "trackRepo", confErr.Field)

	_, err = NewBuilder().
		WithTrackRepository(repository.NewTrackRepository(nil)).
		Build()
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "featureRepo", confErr.Field)
}

func TestBuilder_Build(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := storage.NewSegmentStore(t.TempDir())
	require.NoError(t, err)

	trackRepo := repository.NewTrackRepository(db)
	deps, err := NewBuilder().
		WithTrackRepository(trackRepo).
		WithFeaturesRepository(repository.NewTrackFeaturesRepository(db)).
		WithLyricsRepository(repository.NewLyricsAnalysisRepository(db)).
		WithHistoryRepository(repository.NewPlayHistoryRepository(db)).
		WithSegmentRepository(repository.NewSegmentRepository(db)).
		WithTraceRepository(repository.NewPlannerTraceRepository(db)).
		WithMetadataProvider(provider.NoopMetadataProvider{}).
		WithPlanner(provider.NewPlanner(provider.NoopPlanner{})).
		WithVoice(provider.NoopVoice{}).
		WithCache(cache.NewManager(t.TempDir(), 1<<30, trackRepo, provider.NoopFetcher{})).
		WithSegmentStore(store).
		WithExecutor(ffmpeg.NewExecutor("ffmpeg", "ffprobe")).
		WithQueue(queue.New(5)).
		WithLogger(testLogger()).
		Build()

	require.NoError(t, err)
	require.NotNil(t, deps)
	assert.NotNil(t, deps.TrackRepo)
	assert.NotNil(t, deps.Planner)
	assert.NotNil(t, deps.Queue)
	assert.Nil(t, deps.Archive)
	assert.Nil(t, deps.Notifier)
}
