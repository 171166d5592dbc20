package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeProducer struct {
	mu       sync.Mutex
	requests int
}

func (f *fakeProducer) RequestMoreSegments() {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()
}

func (f *fakeProducer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// writeSegment fabricates a rendered segment and its sidecar on disk and
// returns the queue handle pointing at them.
func writeSegment(t *testing.T, dir, name string, index int) queue.Handle {
	t.Helper()

	audioPath := filepath.Join(dir, name+".mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio for "+name), 0o640))
	sidecarPath := filepath.Join(dir, name+".json")
	require.NoError(t, os.WriteFile(sidecarPath, []byte(`{"render":{"expected_duration":180}}`), 0o640))

	return queue.Handle{
		Index:       index,
		TrackID:     "track-" + name,
		Path:        audioPath,
		SidecarPath: sidecarPath,
		Duration:    180,
	}
}

// fastConfig compresses the 180 second playback window to microseconds.
func fastConfig() Config {
	return Config{
		PlaybackRate: 1e6,
		PollInterval: 10 * time.Millisecond,
	}
}

func TestFileSink_DeliversInOrder(t *testing.T) {
	srcDir := t.TempDir()
	playoutDir := filepath.Join(t.TempDir(), "playout")

	q := queue.New(5)
	require.NoError(t, q.Offer(writeSegment(t, srcDir, "mix_0000", 0)))
	require.NoError(t, q.Offer(writeSegment(t, srcDir, "mix_0001", 1)))

	sink, err := NewFileSink(q, &fakeProducer{}, playoutDir)
	require.NoError(t, err)
	sink.WithLogger(testLogger()).WithConfig(fastConfig())

	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Disconnect()

	require.Eventually(t, func() bool {
		return sink.Status().Delivered == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, q.Len())
	assert.FileExists(t, filepath.Join(playoutDir, "mix_0000.mp3"))
	assert.FileExists(t, filepath.Join(playoutDir, "mix_0000.json"))
	assert.FileExists(t, filepath.Join(playoutDir, "mix_0001.mp3"))
	assert.FileExists(t, filepath.Join(playoutDir, "mix_0001.json"))

	playlist, err := os.ReadFile(filepath.Join(playoutDir, "playlist.m3u"))
	require.NoError(t, err)
	text := string(playlist)
	assert.True(t, strings.HasPrefix(text, "#EXTM3U"))
	assert.Contains(t, text, "mix_0000.mp3")
	assert.Contains(t, text, "mix_0001.mp3")
	assert.Contains(t, text, `tvg-id="track-mix_0000"`)
	assert.Less(t, strings.Index(text, "mix_0000.mp3"), strings.Index(text, "mix_0001.mp3"))
}

func TestFileSink_RequestsMoreWhenStarved(t *testing.T) {
	srcDir := t.TempDir()

	q := queue.New(5)
	producer := &fakeProducer{}

	sink, err := NewFileSink(q, producer, filepath.Join(t.TempDir(), "playout"))
	require.NoError(t, err)
	sink.WithLogger(testLogger()).WithConfig(fastConfig())

	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Disconnect()

	// An empty queue raises urgency on every poll.
	require.Eventually(t, func() bool {
		return producer.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, sink.Status().Starvations, 1)

	// A segment ends the starvation on the next poll.
	require.NoError(t, q.Offer(writeSegment(t, srcDir, "mix_0000", 0)))
	require.Eventually(t, func() bool {
		return sink.Status().Delivered == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "mix_0000.mp3", sink.Status().NowPlaying)
}

func TestFileSink_PrunesBeyondKeepLimit(t *testing.T) {
	srcDir := t.TempDir()
	playoutDir := filepath.Join(t.TempDir(), "playout")

	q := queue.New(5)
	for i := range 3 {
		name := fmt.Sprintf("mix_%04d", i)
		require.NoError(t, q.Offer(writeSegment(t, srcDir, name, i)))
	}

	cfg := fastConfig()
	cfg.KeepSegments = 2

	sink, err := NewFileSink(q, &fakeProducer{}, playoutDir)
	require.NoError(t, err)
	sink.WithLogger(testLogger()).WithConfig(cfg)

	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Disconnect()

	require.Eventually(t, func() bool {
		return sink.Status().Delivered == 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.NoFileExists(t, filepath.Join(playoutDir, "mix_0000.mp3"))
	assert.NoFileExists(t, filepath.Join(playoutDir, "mix_0000.json"))
	assert.FileExists(t, filepath.Join(playoutDir, "mix_0001.mp3"))
	assert.FileExists(t, filepath.Join(playoutDir, "mix_0002.mp3"))

	playlist, err := os.ReadFile(filepath.Join(playoutDir, "playlist.m3u"))
	require.NoError(t, err)
	assert.NotContains(t, string(playlist), "mix_0000")
	assert.Contains(t, string(playlist), "mix_0001.mp3")
	assert.Contains(t, string(playlist), "mix_0002.mp3")
}

func TestFileSink_WakesOnSegmentReady(t *testing.T) {
	srcDir := t.TempDir()

	q := queue.New(5)
	producer := &fakeProducer{}
	notifier := events.NewNotifier(testLogger())

	// With an hour between polls, only the broadcast can wake the sink.
	cfg := fastConfig()
	cfg.PollInterval = time.Hour

	sink, err := NewFileSink(q, producer, filepath.Join(t.TempDir(), "playout"))
	require.NoError(t, err)
	sink.WithLogger(testLogger()).WithConfig(cfg).WithNotifier(notifier)

	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Disconnect()

	assert.Equal(t, 1, notifier.SubscriberCount())
	require.Eventually(t, func() bool {
		return producer.count() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	handle := writeSegment(t, srcDir, "mix_0000", 0)
	require.NoError(t, q.Offer(handle))
	notifier.SegmentReady(handle.TrackID, "mix_0000", handle.Path)

	require.Eventually(t, func() bool {
		return sink.Status().Delivered == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileSink_HoldsSegmentForPlayback(t *testing.T) {
	srcDir := t.TempDir()

	q := queue.New(5)
	require.NoError(t, q.Offer(writeSegment(t, srcDir, "mix_0000", 0)))
	require.NoError(t, q.Offer(writeSegment(t, srcDir, "mix_0001", 1)))

	// At the default playback rate a 180 second segment holds far longer
	// than the test runs, so the second delivery must not happen.
	sink, err := NewFileSink(q, &fakeProducer{}, filepath.Join(t.TempDir(), "playout"))
	require.NoError(t, err)
	sink.WithLogger(testLogger()).WithConfig(Config{PollInterval: 10 * time.Millisecond})

	require.NoError(t, sink.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return sink.Status().Delivered == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.Status().Delivered)
	assert.Equal(t, 1, q.Len())

	// Disconnect interrupts the playback hold.
	done := make(chan struct{})
	go func() {
		sink.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not interrupt the playback hold")
	}
	assert.False(t, sink.Status().Connected)
}

func TestFileSink_ConnectLifecycle(t *testing.T) {
	q := queue.New(5)

	sink, err := NewFileSink(q, &fakeProducer{}, filepath.Join(t.TempDir(), "playout"))
	require.NoError(t, err)
	sink.WithLogger(testLogger()).WithConfig(fastConfig())

	require.NoError(t, sink.Connect(context.Background()))
	assert.Error(t, sink.Connect(context.Background()))
	assert.True(t, sink.Status().Connected)
	assert.Equal(t, "file_sink", sink.Name())

	sink.Disconnect()
	assert.False(t, sink.Status().Connected)

	// Can reconnect after a disconnect.
	require.NoError(t, sink.Connect(context.Background()))
	sink.Disconnect()
}
