// Package persistsegment records the rendered segment in the catalog: the
// segment row, the play history entry that selection recency windows read,
// and the incoming track's play count, all in one transaction. The rows
// must land together before anything is announced downstream; a partial
// record would make the next invocation resolve the wrong outgoing track.
// Only the archive copy afterwards is best-effort.
package persistsegment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/storage"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "persist_segment_and_history"
	// StageName is the human-readable name for this stage.
	StageName = "Persist Segment and History"
)

// Stage writes the segment's catalog rows and optional archive copy.
type Stage struct {
	shared.BaseStage
	segmentRepo repository.SegmentRepository
	archive     *storage.Sandbox
	logger      *slog.Logger
}

// New creates a persistence stage. archive may be nil to disable archive
// copies.
func New(segmentRepo repository.SegmentRepository, archive *storage.Sandbox) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName, core.PhasePersisting),
		segmentRepo: segmentRepo,
		archive:     archive,
	}
}

// NewConstructor returns a StageConstructor for registration with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.SegmentRepo, deps.Archive)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute transactionally records the segment row, closes the previous
// play history entry, opens one for the incoming track and bumps its play
// count. Any write failing aborts the invocation with nothing persisted.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.TrackB == nil {
		return nil, fmt.Errorf("%w: no incoming track on state", core.ErrPersistFailed)
	}
	if state.SegmentPath == "" {
		return nil, fmt.Errorf("%w: no rendered segment on state", core.ErrPersistFailed)
	}

	kind := models.TransitionBlend
	if state.Transition != nil {
		kind = state.Transition.Kind.OrBlend()
	}

	seg := &models.Segment{
		SessionID:      state.Session.ID,
		SegmentIndex:   state.SegmentIndex,
		TrackID:        state.TrackB.ID,
		FilePath:       state.SegmentPath,
		DurationSec:    state.SegmentDuration,
		TransitionKind: kind,
		UsedVoice:      state.UsedVoice,
	}
	entry := &models.PlayHistoryEntry{
		SessionID:      state.Session.ID,
		TrackID:        state.TrackB.ID,
		StartedAt:      models.Now(),
		TransitionKind: kind,
	}
	if err := s.segmentRepo.InsertWithPlayback(ctx, seg, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistFailed, err)
	}
	state.Segment = seg
	// Segment row, history row, play-count bump.
	result.RecordsProcessed += 3

	s.archiveCopy(ctx, state, seg)

	s.log(ctx, slog.LevelInfo, "segment persisted",
		slog.Int64("segment_id", seg.ID),
		slog.Int("segment_index", seg.SegmentIndex),
		slog.String("track_id", state.TrackB.ID.String()),
		slog.String("transition", string(kind)))

	result.Message = fmt.Sprintf("Persisted segment %d", seg.SegmentIndex)
	return result, nil
}

// archiveCopy hard-links or copies the published segment and its sidecar
// into the archive, then records the location. Never fatal; the mix does
// not depend on the archive.
func (s *Stage) archiveCopy(ctx context.Context, state *core.State, seg *models.Segment) {
	if s.archive == nil {
		return
	}

	name := state.SegmentName
	if err := s.archive.LinkOrCopy(state.SegmentPath, name); err != nil {
		state.AddError(fmt.Errorf("archiving segment: %w", err))
		s.log(ctx, slog.LevelWarn, "failed to archive segment",
			slog.String("segment", name),
			slog.String("error", err.Error()))
		return
	}
	if state.SidecarPath != "" {
		if err := s.archive.LinkOrCopy(state.SidecarPath, filepath.Base(state.SidecarPath)); err != nil {
			s.log(ctx, slog.LevelWarn, "failed to archive sidecar",
				slog.String("error", err.Error()))
		}
	}

	archivePath, err := s.archive.ResolvePath(name)
	if err != nil {
		state.AddError(fmt.Errorf("resolving archive path: %w", err))
		return
	}
	if err := s.segmentRepo.SetArchivePath(ctx, seg.ID, archivePath); err != nil {
		state.AddError(fmt.Errorf("recording archive path: %w", err))
		s.log(ctx, slog.LevelWarn, "failed to record archive path",
			slog.String("error", err.Error()))
		return
	}
	seg.FilePathArchive = archivePath

	s.log(ctx, slog.LevelDebug, "segment archived", slog.String("path", archivePath))
}

// log writes a structured log message if a logger is available.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(ctx, level, msg, attrs...)
	}
}

// Verify interface compliance.
var _ core.Stage = (*Stage)(nil)
