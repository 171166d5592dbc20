// Package synthesizevoice turns the written script into an audio clip.
// No script means nothing to do; a synthesis or probe failure drops the
// voice and the segment renders without it. The stage never fails the
// invocation.
package synthesizevoice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/provider"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "synthesize_voice"
	// StageName is the human-readable name for this stage.
	StageName = "Synthesize Voice"
)

// Stage renders the DJ script to speech inside the invocation work dir.
type Stage struct {
	shared.BaseStage
	voice    provider.VoiceSynthesizer
	executor *ffmpeg.Executor
	logger   *slog.Logger
}

// New creates a voice synthesis stage.
func New(voice provider.VoiceSynthesizer, executor *ffmpeg.Executor) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName, core.PhaseSpeaking),
		voice:     voice,
		executor:  executor,
	}
}

// NewConstructor returns a StageConstructor for registration with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.Voice, deps.Executor)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute synthesizes the script and stores the clip path and probed
// duration on the state. An empty VoicePath after this stage means the
// segment mixes without voice.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.Script == nil || strings.TrimSpace(state.Script.Text) == "" {
		s.log(ctx, slog.LevelInfo, "no script, skipping voice synthesis")
		result.Message = "Skipped: no script"
		return result, nil
	}

	path, err := s.voice.Synthesize(ctx, state.Script.Text, provider.SynthesisOptions{Dir: state.WorkDir})
	switch {
	case err == nil:
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelInfo, "voice synthesizer unavailable, segment will be voiceless")
		result.Message = "Skipped: synthesizer unavailable"
		return result, nil
	default:
		state.AddError(fmt.Errorf("synthesizing voice: %w", err))
		s.log(ctx, slog.LevelWarn, "voice synthesis failed, segment will be voiceless",
			slog.String("error", err.Error()))
		result.Message = "Synthesis failed, segment will be voiceless"
		return result, nil
	}

	duration, err := s.executor.ProbeDuration(ctx, path)
	if err != nil || duration <= 0 {
		if err == nil {
			err = fmt.Errorf("probed zero duration")
		}
		state.AddError(fmt.Errorf("probing voice clip %s: %w", path, err))
		s.log(ctx, slog.LevelWarn, "voice clip unusable, segment will be voiceless",
			slog.String("path", path),
			slog.String("error", err.Error()))
		result.Message = "Clip unusable, segment will be voiceless"
		return result, nil
	}

	state.VoicePath = path
	state.VoiceDuration = duration

	artifact := core.NewArtifact(core.ArtifactTypeVoice, StageID).
		WithFilePath(path).
		WithDuration(duration)
	if info, err := os.Stat(path); err == nil {
		artifact = artifact.WithFileSize(info.Size())
	}
	result.Artifacts = append(result.Artifacts, artifact)

	s.log(ctx, slog.LevelInfo, "voice synthesized",
		slog.String("path", path),
		slog.Float64("duration", duration))

	result.RecordsProcessed = 1
	result.Message = fmt.Sprintf("Synthesized %.1fs voice clip", duration)
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
