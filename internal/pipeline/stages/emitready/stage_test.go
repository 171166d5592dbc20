package emitready

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newReadyState(index int) *core.State {
	session := &models.Session{ID: models.NewUUID(), StartedAt: models.Now(), Mode: models.SessionModeContinuous}
	state := core.NewState(session, index, index == 0)
	state.TrackB = &models.Track{Title: "Restless Engine", Artist: "The Midnight Cartography", DurationSec: 236}
	state.TrackB.ID = models.NewUUID()
	state.SegmentName = "mix_1a2b3c4d.mp3"
	state.SegmentPath = "/segments/mix_1a2b3c4d.mp3"
	state.SidecarPath = "/segments/mix_1a2b3c4d.mp3.json"
	state.SegmentDuration = 193.4
	return state
}

func drainTypes(sub *events.Subscriber) []string {
	var types []string
	for len(sub.Events) > 0 {
		ev := <-sub.Events
		types = append(types, ev.Type)
	}
	return types
}

func TestStage_Execute_NoRenderedSegment(t *testing.T) {
	s := New(queue.New(2), nil)
	state := newReadyState(1)
	state.SegmentPath = ""

	_, err := s.Execute(context.Background(), state)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistFailed)
}

func TestStage_Execute_Enqueues(t *testing.T) {
	q := queue.New(2)
	s := New(q, nil)
	state := newReadyState(0)

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, "Enqueued segment 0", result.Message)
	assert.Equal(t, 1, q.Len())

	handle, ok := q.PeekHead()
	require.True(t, ok)
	assert.Equal(t, 0, handle.Index)
	assert.Equal(t, state.TrackB.ID.String(), handle.TrackID)
	assert.Equal(t, "/segments/mix_1a2b3c4d.mp3", handle.Path)
	assert.Equal(t, 193.4, handle.Duration)
}

func TestStage_Execute_QueueFull(t *testing.T) {
	q := queue.New(1)
	require.NoError(t, q.Offer(queue.Handle{Index: 0, Path: "/segments/intro.mp3"}))

	s := New(q, nil)
	state := newReadyState(1)

	_, err := s.Execute(context.Background(), state)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistFailed)
	assert.Equal(t, 1, q.Len())
}

func TestStage_Execute_BroadcastsEvents(t *testing.T) {
	notifier := events.NewNotifier(testLogger())
	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub.ID)

	s := New(queue.New(2), notifier)

	t.Run("without trace", func(t *testing.T) {
		_, err := s.Execute(context.Background(), newReadyState(0))
		require.NoError(t, err)

		assert.Equal(t, []string{events.TypeNowPlaying, events.TypeSegmentReady}, drainTypes(sub))
	})

	t.Run("with trace", func(t *testing.T) {
		state := newReadyState(1)
		state.AddDecision("select_track", "picked the closest tempo match")

		_, err := s.Execute(context.Background(), state)
		require.NoError(t, err)

		assert.Equal(t, []string{events.TypeNowPlaying, events.TypeDecisionTrace, events.TypeSegmentReady}, drainTypes(sub))
	})
}

func TestStage_Interface(t *testing.T) {
	s := New(queue.New(1), nil)

	assert.Equal(t, StageID, s.ID())
	assert.Equal(t, StageName, s.Name())
	assert.Equal(t, core.PhasePersisting, s.Phase())
}

func TestNewConstructor(t *testing.T) {
	constructor := NewConstructor()
	stage := constructor(&core.Dependencies{})

	assert.NotNil(t, stage)
	assert.Equal(t, StageID, stage.ID())
}
