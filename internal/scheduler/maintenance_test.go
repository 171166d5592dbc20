package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/storage"
)

func TestMaintenance_RegisterAndRunNow(t *testing.T) {
	m := NewMaintenance().WithLogger(testLogger())

	err := m.Register("sweep", "@every 1h", func(ctx context.Context) (string, error) {
		return "swept", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.EntryCount())

	result, err := m.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Equal(t, "swept", result)

	// Same name twice is a wiring mistake.
	err = m.Register("sweep", "@every 1h", func(ctx context.Context) (string, error) {
		return "", nil
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	_, err = m.RunNow(context.Background(), "missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestMaintenance_InvalidSchedule(t *testing.T) {
	m := NewMaintenance().WithLogger(testLogger())

	err := m.Register("broken", "not a schedule", func(ctx context.Context) (string, error) {
		return "", nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, m.EntryCount())
}

func TestMaintenance_StartStop(t *testing.T) {
	m := NewMaintenance().WithLogger(testLogger())

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	m.Stop()

	// Can restart after stop.
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
}

func TestMaintenance_CronFires(t *testing.T) {
	m := NewMaintenance().WithLogger(testLogger())

	var runs atomic.Int32
	err := m.Register("counter", "@every 10ms", func(ctx context.Context) (string, error) {
		runs.Add(1)
		return "counted", nil
	})
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMaintenance_JobErrorIsLoggedNotFatal(t *testing.T) {
	m := NewMaintenance().WithLogger(testLogger())

	var runs atomic.Int32
	err := m.Register("flaky", "@every 10ms", func(ctx context.Context) (string, error) {
		runs.Add(1)
		return "", errors.New("disk on fire")
	})
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	// A failing job keeps its schedule.
	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCacheSweepJob(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Track{}))

	manager := cache.NewManager(t.TempDir(), 1<<20, repository.NewTrackRepository(db), provider.NoopFetcher{}).
		WithLogger(testLogger())

	job := CacheSweepJob(manager)
	result, err := job(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "evicted 0 tracks (0 B)", result)
}

func TestStaleCleanupJob(t *testing.T) {
	store, err := storage.NewSegmentStore(t.TempDir())
	require.NoError(t, err)

	job := StaleCleanupJob(store, time.Hour)
	result, err := job(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "removed 0 stale work dirs", result)

	// An abandoned work directory older than the age limit gets removed.
	_, err = store.WorkDir()
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	job = StaleCleanupJob(store, 10*time.Millisecond)
	result, err = job(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "removed 1 stale work dirs", result)
}
