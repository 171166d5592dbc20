// Package ensurecached implements the cache guarantee stage: the outgoing
// track's audio must be on disk before the render, and the incoming track's
// cache state is observed so the fetch stage knows what is left to do.
package ensurecached

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "ensure_cached"
	// StageName is the human-readable name for this stage.
	StageName = "Ensure Cached"
)

// Stage guarantees the audio this invocation depends on. During bootstrap
// the opening track is fetched outright; in steady state the outgoing track
// is re-fetched if eviction took it, while the incoming track is only
// checked so the fetch stage can download it.
type Stage struct {
	shared.BaseStage
	cache  *cache.Manager
	logger *slog.Logger
}

// New creates a new cache guarantee stage.
func New(cacheManager *cache.Manager) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName, core.PhaseFetching),
		cache:     cacheManager,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.Cache)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute ensures the invocation's audio dependencies.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.TrackB == nil {
		return result, fmt.Errorf("%w: no incoming track on state", core.ErrFetchFailed)
	}

	if state.Bootstrap {
		path, err := s.cache.EnsureCached(ctx, state.TrackB)
		if err != nil {
			return result, fmt.Errorf("%w: fetching opening track %s: %v", core.ErrFetchFailed, state.TrackB.ID, err)
		}
		state.PathB = path

		s.log(ctx, slog.LevelInfo, "opening track cached",
			slog.String("track_id", state.TrackB.ID.String()),
			slog.String("path", path))

		result.RecordsProcessed = 1
		result.Message = "Opening track cached"
		return result, nil
	}

	if state.TrackA == nil {
		return result, fmt.Errorf("%w: no outgoing track on state", core.ErrFetchFailed)
	}

	// The outgoing track must be on disk for its tail to render; eviction
	// may have taken it since it was played.
	pathA, err := s.cache.EnsureCached(ctx, state.TrackA)
	if err != nil {
		return result, fmt.Errorf("%w: fetching outgoing track %s: %v", core.ErrFetchFailed, state.TrackA.ID, err)
	}
	state.PathA = pathA

	// The incoming track is only observed here; the fetch stage downloads
	// it when missing.
	if state.TrackB.IsCached() {
		if p := *state.TrackB.LocalPath; fileExists(p) {
			state.PathB = p
			s.log(ctx, slog.LevelInfo, "incoming track already cached",
				slog.String("track_id", state.TrackB.ID.String()),
				slog.String("path", p))
		} else {
			s.log(ctx, slog.LevelWarn, "incoming track cache record is stale",
				slog.String("track_id", state.TrackB.ID.String()),
				slog.String("path", p))
		}
	} else {
		s.log(ctx, slog.LevelInfo, "incoming track not cached",
			slog.String("track_id", state.TrackB.ID.String()))
	}

	result.RecordsProcessed = 2
	result.Message = "Outgoing track cached"
	return result, nil
}

// fileExists reports whether the path exists on disk.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// log logs a message if the logger is set.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
