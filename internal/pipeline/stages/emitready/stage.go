// Package emitready hands the finished segment to the playout side: the
// handle goes onto the segment queue and the now_playing, decision_trace
// and segment_ready events go out to subscribers. The queue offer is the
// one hard step; the scheduler gates production on queue depth, so a full
// queue here means the gating broke and the invocation must fail rather
// than drop a rendered segment on the floor.
package emitready

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/queue"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "emit_ready"
	// StageName is the human-readable name for this stage.
	StageName = "Emit Ready"
)

// Stage publishes the segment handle and broadcasts the invocation's events.
type Stage struct {
	shared.BaseStage
	queue    *queue.Queue
	notifier *events.Notifier
	logger   *slog.Logger
}

// New creates an emit stage. notifier may be nil; events are then dropped.
func New(q *queue.Queue, notifier *events.Notifier) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName, core.PhasePersisting),
		queue:     q,
		notifier:  notifier,
	}
}

// NewConstructor returns a StageConstructor for registration with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.Queue, deps.Notifier)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute enqueues the segment handle, then broadcasts events.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.SegmentPath == "" || state.TrackB == nil {
		return nil, fmt.Errorf("%w: no rendered segment to emit", core.ErrPersistFailed)
	}

	handle := queue.Handle{
		Index:       state.SegmentIndex,
		TrackID:     state.TrackB.ID.String(),
		Path:        state.SegmentPath,
		SidecarPath: state.SidecarPath,
		Duration:    state.SegmentDuration,
	}
	if err := s.queue.Offer(handle); err != nil {
		return nil, fmt.Errorf("%w: enqueueing segment %d: %v", core.ErrPersistFailed, state.SegmentIndex, err)
	}

	if s.notifier != nil {
		s.notifier.NowPlaying(state.TrackB.ID.String())
		if len(state.Trace) > 0 {
			s.notifier.DecisionTrace(state.Trace)
		}
		s.notifier.SegmentReady(state.TrackB.ID.String(), state.SegmentName, state.SegmentPath)
	}

	s.log(ctx, slog.LevelInfo, "segment ready",
		slog.Int("segment_index", state.SegmentIndex),
		slog.String("segment", state.SegmentName),
		slog.Int("queue_len", s.queue.Len()))

	result.RecordsProcessed = 1
	result.Message = fmt.Sprintf("Enqueued segment %d", state.SegmentIndex)
	return result, nil
}

// log writes a structured log message if a logger is available.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(ctx, level, msg, attrs...)
	}
}

// Verify interface compliance.
var _ core.Stage = (*Stage)(nil)
