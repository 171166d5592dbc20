// Package plantransition asks the planner how to mix the outgoing track
// into the incoming one. The stage never fails the invocation: when the
// planner is unavailable or returns garbage, the renderer still gets a
// safe crossfade plan.
package plantransition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "plan_transition"
	// StageName is the human-readable name for this stage.
	StageName = "Plan Transition"
)

// Stage decides the transition kind and timing for the upcoming segment.
type Stage struct {
	shared.BaseStage
	featureRepo repository.TrackFeaturesRepository
	lyricsRepo  repository.LyricsAnalysisRepository
	traceRepo   repository.PlannerTraceRepository
	planner     *provider.Planner
	logger      *slog.Logger
}

// New creates a transition planning stage.
func New(
	featureRepo repository.TrackFeaturesRepository,
	lyricsRepo repository.LyricsAnalysisRepository,
	traceRepo repository.PlannerTraceRepository,
	planner *provider.Planner,
) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName, core.PhasePlanning),
		featureRepo: featureRepo,
		lyricsRepo:  lyricsRepo,
		traceRepo:   traceRepo,
		planner:     planner,
	}
}

// NewConstructor returns a StageConstructor for registration with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.FeatureRepo, deps.LyricsRepo, deps.TraceRepo, deps.Planner)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute produces a transition plan for the A-to-B handoff and stores it
// on the state. A missing incoming track skips the stage; a missing
// outgoing track yields a fixed opening plan.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.TrackB == nil || state.PathB == "" {
		s.log(ctx, slog.LevelWarn, "no incoming track audio, skipping transition planning")
		result.Message = "Skipped: no incoming track"
		return result, nil
	}

	plan := s.plan(ctx, state)
	state.Transition = plan

	s.log(ctx, slog.LevelInfo, "transition planned",
		slog.String("kind", string(plan.Kind)),
		slog.Float64("transition_start", plan.TransitionStart),
		slog.Float64("crossfade", plan.Crossfade))

	result.RecordsProcessed = 1
	result.Message = fmt.Sprintf("Planned %s transition", plan.Kind)
	return result, nil
}

func (s *Stage) plan(ctx context.Context, state *core.State) *provider.TransitionPlan {
	if state.TrackA == nil || state.PathA == "" {
		s.log(ctx, slog.LevelInfo, "no outgoing track, using opening plan")
		return &provider.TransitionPlan{
			Kind:      models.TransitionBlend,
			Crossfade: 10,
			VoiceLead: 5,
			Analysis:  "First track in set - no transition needed",
		}
	}

	outgoing := s.brief(ctx, state.TrackA)
	incoming := s.brief(ctx, state.TrackB)

	plan, err := s.planner.PlanTransition(ctx, outgoing, incoming)
	switch {
	case err == nil:
		shared.RecordTrace(ctx, s.traceRepo, s.logger, state.Session.ID, plan.Trace)
		return plan
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelInfo, "planner unavailable, using default transition plan")
		return provider.DefaultTransitionPlan(state.TrackA.DurationSec)
	default:
		state.AddError(fmt.Errorf("planning transition: %w", err))
		s.log(ctx, slog.LevelWarn, "transition planning failed, using default plan",
			slog.String("error", err.Error()))
		plan := provider.DefaultTransitionPlan(state.TrackA.DurationSec)
		plan.Analysis = fmt.Sprintf("fallback after planner error: %v", err)
		return plan
	}
}

// brief assembles the planner's view of a track. Missing analysis rows
// are normal for tracks that were never enriched.
func (s *Stage) brief(ctx context.Context, track *models.Track) provider.TrackBrief {
	features, err := s.featureRepo.Get(ctx, track.ID)
	if err != nil {
		s.log(ctx, slog.LevelDebug, "no audio features for track",
			slog.String("track_id", track.ID.String()))
		features = nil
	}
	lyrics, err := s.lyricsRepo.Get(ctx, track.ID)
	if err != nil {
		s.log(ctx, slog.LevelDebug, "no lyrics analysis for track",
			slog.String("track_id", track.ID.String()))
		lyrics = nil
	}
	return shared.TrackBrief(track, features, lyrics)
}

// log writes a structured log message if a logger is available.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(ctx, level, msg, attrs...)
	}
}

// Verify interface compliance.
var _ core.Stage = (*Stage)(nil)
