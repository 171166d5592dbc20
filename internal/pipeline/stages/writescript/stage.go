// Package writescript asks the planner for the DJ's spoken line. The same
// stage serves both graph shapes: the bootstrap variant writes the
// set-opening intro and always produces a script, falling back to a fixed
// line when the planner cannot; the steady variant writes a bridge over
// the upcoming transition and leaves the segment voiceless on failure.
package writescript

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
	// IntroStageID identifies the bootstrap variant.
	IntroStageID = "write_intro_script"
	// IntroStageName is the bootstrap variant's human-readable name.
	IntroStageName = "Write Intro Script"

	// TransitionStageID identifies the steady variant.
	TransitionStageID = "write_transition_script"
	// TransitionStageName is the steady variant's human-readable name.
	TransitionStageName = "Write Transition Script"

	// introFallback is spoken when the planner cannot write the set opener.
	introFallback = "Alright, let's get this started!"
)

// Stage writes the voice script for the upcoming segment.
type Stage struct {
	shared.BaseStage
	featureRepo repository.TrackFeaturesRepository
	lyricsRepo  repository.LyricsAnalysisRepository
	traceRepo   repository.PlannerTraceRepository
	planner     *provider.Planner
	intro       bool
	logger      *slog.Logger
}

// NewIntro creates the bootstrap variant.
func NewIntro(
	featureRepo repository.TrackFeaturesRepository,
	lyricsRepo repository.LyricsAnalysisRepository,
	traceRepo repository.PlannerTraceRepository,
	planner *provider.Planner,
) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(IntroStageID, IntroStageName, core.PhasePlanning),
		featureRepo: featureRepo,
		lyricsRepo:  lyricsRepo,
		traceRepo:   traceRepo,
		planner:     planner,
		intro:       true,
	}
}

// NewTransition creates the steady variant.
func NewTransition(
	featureRepo repository.TrackFeaturesRepository,
	lyricsRepo repository.LyricsAnalysisRepository,
	traceRepo repository.PlannerTraceRepository,
	planner *provider.Planner,
) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(TransitionStageID, TransitionStageName, core.PhasePlanning),
		featureRepo: featureRepo,
		lyricsRepo:  lyricsRepo,
		traceRepo:   traceRepo,
		planner:     planner,
	}
}

// NewIntroConstructor returns a StageConstructor for the bootstrap variant.
func NewIntroConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := NewIntro(deps.FeatureRepo, deps.LyricsRepo, deps.TraceRepo, deps.Planner)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", IntroStageID)
		}
		return s
	}
}

// NewTransitionConstructor returns a StageConstructor for the steady variant.
func NewTransitionConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := NewTransition(deps.FeatureRepo, deps.LyricsRepo, deps.TraceRepo, deps.Planner)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", TransitionStageID)
		}
		return s
	}
}

// Execute writes the script and stores it on the state. A nil script
// after this stage means the segment goes out without voice.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.TrackB == nil {
		s.log(ctx, slog.LevelWarn, "no incoming track, skipping script")
		result.Message = "Skipped: no incoming track"
		return result, nil
	}

	var script *provider.Script
	if s.intro {
		script = s.writeIntro(ctx, state)
	} else {
		script = s.writeTransition(ctx, state)
	}
	state.Script = script

	if script == nil {
		result.Message = "No script, segment will be voiceless"
		return result, nil
	}

	s.log(ctx, slog.LevelInfo, "script written",
		slog.Int("length", len(script.Text)),
		slog.String("tone", script.Tone))

	result.RecordsProcessed = 1
	result.Message = fmt.Sprintf("Wrote %d character script", len(script.Text))
	return result, nil
}

// writeIntro never returns nil: the set opener always has a line, even if
// it is the canned one.
func (s *Stage) writeIntro(ctx context.Context, state *core.State) *provider.Script {
	script, err := s.planner.WriteIntroScript(ctx, s.brief(ctx, state.TrackB), state.User.PromptText())
	switch {
	case err == nil:
		shared.RecordTrace(ctx, s.traceRepo, s.logger, state.Session.ID, script.Trace)
		return script
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelInfo, "planner unavailable, using fixed intro line")
	default:
		state.AddError(fmt.Errorf("writing intro script: %w", err))
		s.log(ctx, slog.LevelWarn, "intro script failed, using fixed line",
			slog.String("error", err.Error()))
	}
	return &provider.Script{Text: introFallback}
}

func (s *Stage) writeTransition(ctx context.Context, state *core.State) *provider.Script {
	sc := provider.ScriptContext{
		Incoming: s.brief(ctx, state.TrackB),
	}
	if state.TrackA != nil {
		sc.Outgoing = s.brief(ctx, state.TrackA)
	}

	script, err := s.planner.WriteTransitionScript(ctx, sc, state.User.PromptText())
	switch {
	case err == nil:
		shared.RecordTrace(ctx, s.traceRepo, s.logger, state.Session.ID, script.Trace)
		return script
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelInfo, "planner unavailable, segment will be voiceless")
	default:
		state.AddError(fmt.Errorf("writing transition script: %w", err))
		s.log(ctx, slog.LevelWarn, "transition script failed, segment will be voiceless",
			slog.String("error", err.Error()))
	}
	return nil
}

func (s *Stage) brief(ctx context.Context, track *models.Track) provider.TrackBrief {
	features, err := s.featureRepo.Get(ctx, track.ID)
	if err != nil {
		features = nil
	}
	lyrics, err := s.lyricsRepo.Get(ctx, track.ID)
	if err != nil {
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
