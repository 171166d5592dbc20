// Package fetchtrack implements the incoming-track download stage for
// steady-state invocations.
package fetchtrack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "fetch_if_needed"
	// StageName is the human-readable name for this stage.
	StageName = "Fetch If Needed"
)

// Stage downloads the incoming track's audio when the cache check left it
// unresolved. A failed selection is never revisited here: if this track
// cannot be fetched, the invocation fails and the next tick plans afresh.
type Stage struct {
	shared.BaseStage
	cache  *cache.Manager
	logger *slog.Logger
}

// New creates a new fetch stage.
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

// Execute downloads the incoming track unless the cache already holds it.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.TrackB == nil {
		return result, fmt.Errorf("%w: no incoming track on state", core.ErrFetchFailed)
	}

	if state.PathB != "" {
		s.log(ctx, slog.LevelDebug, "incoming track already cached, nothing to fetch",
			slog.String("track_id", state.TrackB.ID.String()))
		result.Message = "Already cached"
		return result, nil
	}

	path, err := s.cache.EnsureCached(ctx, state.TrackB)
	if err != nil {
		return result, fmt.Errorf("%w: fetching incoming track %s: %v", core.ErrFetchFailed, state.TrackB.ID, err)
	}
	state.PathB = path

	s.log(ctx, slog.LevelInfo, "incoming track fetched",
		slog.String("track_id", state.TrackB.ID.String()),
		slog.String("path", path))

	result.RecordsProcessed = 1
	result.Message = "Incoming track fetched"
	return result, nil
}

// log logs a message if the logger is set.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
