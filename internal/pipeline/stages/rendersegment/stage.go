// Package rendersegment turns the planned segment into an MP3 on disk.
// It probes the source durations, resolves the timing, assembles the
// filter graph, runs the render, verifies the output and publishes the
// file with its sidecar. Any failure here aborts the invocation.
//
// The bootstrap variant opens the session: an optional voice intro fades
// into the trimmed opening track. The steady variant carries the tail of
// the outgoing track through the planned transition into the body of the
// incoming one, with the voice clip ducked over the handoff.
package rendersegment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/fgraph"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/jmylchreest/mixarr/internal/timeline"
	"github.com/jmylchreest/mixarr/internal/transition"
)

const (
	// BootstrapStageID identifies the session-opening variant.
	BootstrapStageID = "render_bootstrap_segment"
	// BootstrapStageName is the bootstrap variant's human-readable name.
	BootstrapStageName = "Render Bootstrap Segment"

	// SteadyStageID identifies the steady-state variant.
	SteadyStageID = "render_transition_segment"
	// SteadyStageName is the steady variant's human-readable name.
	SteadyStageName = "Render Transition Segment"

	// shortfallTolerance is how much shorter than planned the rendered
	// file may measure before it is worth a warning.
	shortfallTolerance = 0.25
)

// Stage renders one segment through the ffmpeg executor.
type Stage struct {
	shared.BaseStage
	executor  *ffmpeg.Executor
	store     *storage.SegmentStore
	audio     config.AudioConfig
	bootstrap bool
	logger    *slog.Logger
}

// NewBootstrap creates the session-opening render stage.
func NewBootstrap(executor *ffmpeg.Executor, store *storage.SegmentStore, audio config.AudioConfig) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(BootstrapStageID, BootstrapStageName, core.PhaseRendering),
		executor:  executor,
		store:     store,
		audio:     audio,
		bootstrap: true,
	}
}

// NewSteady creates the steady-state render stage.
func NewSteady(executor *ffmpeg.Executor, store *storage.SegmentStore, audio config.AudioConfig) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(SteadyStageID, SteadyStageName, core.PhaseRendering),
		executor:  executor,
		store:     store,
		audio:     audio,
	}
}

// NewBootstrapConstructor returns a StageConstructor for the bootstrap variant.
func NewBootstrapConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := NewBootstrap(deps.Executor, deps.Store, deps.Audio)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", BootstrapStageID)
		}
		return s
	}
}

// NewSteadyConstructor returns a StageConstructor for the steady variant.
func NewSteadyConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := NewSteady(deps.Executor, deps.Store, deps.Audio)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", SteadyStageID)
		}
		return s
	}
}

// Execute renders, verifies and publishes the segment, and writes its
// sidecar. On success the state carries the published paths and the
// probed duration.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if state.PathB == "" {
		return nil, fmt.Errorf("%w: no incoming track audio", core.ErrRenderFailed)
	}

	var (
		prefix string
		graph  string
		inputs []ffmpeg.Input
		sc     *storage.Sidecar
		kind   string
		err    error
	)
	if s.bootstrap {
		prefix = storage.SegmentPrefixIntro
		kind = storage.TransitionTypeIntro
		graph, inputs, sc, err = s.prepareBootstrap(ctx, state)
	} else {
		prefix = storage.SegmentPrefixMix
		if state.PathA == "" {
			return nil, fmt.Errorf("%w: no outgoing track audio", core.ErrRenderFailed)
		}
		if state.Transition == nil {
			return nil, fmt.Errorf("%w: no transition plan", core.ErrRenderFailed)
		}
		kind = string(state.Transition.Kind)
		graph, inputs, sc, err = s.prepareSteady(ctx, state)
	}
	if err != nil {
		return nil, err
	}

	name := s.store.NewSegmentName(prefix)
	state.SegmentName = name
	rawPath := filepath.Join(state.WorkDir, name)

	s.log(ctx, slog.LevelInfo, "rendering segment",
		slog.String("segment", name),
		slog.String("kind", kind),
		slog.Float64("expected_duration", sc.Render.ExpectedDuration),
		slog.Bool("voice", state.UsedVoice))

	if err := s.executor.Run(ctx, graph, inputs, rawPath); err != nil {
		return nil, fmt.Errorf("%w: rendering %s: %v", core.ErrRenderFailed, name, err)
	}

	actual, err := s.executor.ProbeDuration(ctx, rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: probing rendered segment: %v", core.ErrRenderFailed, err)
	}
	if actual <= 0 {
		return nil, fmt.Errorf("%w: rendered segment has no duration", core.ErrRenderFailed)
	}
	if shortfall := sc.Render.ExpectedDuration - actual; shortfall > shortfallTolerance {
		s.log(ctx, slog.LevelWarn, "rendered segment shorter than planned",
			slog.Float64("expected", sc.Render.ExpectedDuration),
			slog.Float64("actual", actual),
			slog.Float64("shortfall", shortfall))
	}
	sc.Render.ActualDuration = actual

	pubPath, size, err := s.store.Publish(rawPath, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRenderFailed, err)
	}
	sidecarPath, err := s.store.WriteSidecar(name, sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRenderFailed, err)
	}

	state.SegmentPath = pubPath
	state.SidecarPath = sidecarPath
	state.SegmentDuration = actual

	result.Artifacts = append(result.Artifacts,
		core.NewArtifact(core.ArtifactTypeAudio, s.ID()).
			WithFilePath(pubPath).
			WithFileSize(size).
			WithDuration(actual),
		core.NewArtifact(core.ArtifactTypeSidecar, s.ID()).
			WithFilePath(sidecarPath))

	s.log(ctx, slog.LevelInfo, "segment rendered",
		slog.String("path", pubPath),
		slog.Float64("duration", actual),
		slog.Int64("size_bytes", size))

	result.RecordsProcessed = 1
	result.Message = fmt.Sprintf("Rendered %.1fs segment %s", actual, name)
	return result, nil
}

// prepareBootstrap plans and assembles the session-opening graph: the
// voice intro fades out as the opening track fades in underneath, and the
// track is trimmed so the next segment can carry its transition.
func (s *Stage) prepareBootstrap(ctx context.Context, state *core.State) (string, []ffmpeg.Input, *storage.Sidecar, error) {
	durB, err := s.executor.ProbeDuration(ctx, state.PathB)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: probing opening track: %v", core.ErrRenderFailed, err)
	}

	voiced := state.VoicePath != "" && state.VoiceDuration > 0
	in := timeline.BootstrapInput{
		DurationB:  durB,
		TailBuffer: s.audio.BEndBufferSec,
	}
	if voiced {
		in.VoiceDuration = state.VoiceDuration
	}
	plan, err := timeline.PlanBootstrap(in)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: planning opening segment: %v", core.ErrRenderFailed, err)
	}

	sr := s.sampleRate()
	g := fgraph.New()
	delay := fmt.Sprintf("%d|%d", plan.DelayBMs, plan.DelayBMs)

	if voiced {
		g.Chain("0:a").
			Filter("aresample", sr).
			Filter("afade", "t=out",
				"st="+fgraph.Float(plan.Voice.FadeOutStart),
				"d="+fgraph.Float(plan.Voice.FadeOut)).
			Label("voice")
		g.Chain("1:a").
			Filter("aresample", sr).
			Filter("atrim", "duration="+fgraph.Float(plan.TrimB)).
			Filter("asetpts", "PTS-STARTPTS").
			Filter("adelay", delay).
			Filter("afade", "t=in", "st=0", "d="+fgraph.Float(plan.FadeInB)).
			Label("body")
		g.Chain("voice", "body").
			Filter("amix", "inputs=2", "duration=longest", "dropout_transition=0").
			Label("out")
	} else {
		g.Chain("0:a").
			Filter("aresample", sr).
			Filter("atrim", "duration="+fgraph.Float(plan.TrimB)).
			Filter("asetpts", "PTS-STARTPTS").
			Filter("afade", "t=in", "st=0", "d="+fgraph.Float(plan.FadeInB)).
			Label("out")
	}

	graph, err := g.String()
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: building filter graph: %v", core.ErrRenderFailed, err)
	}

	var inputs []ffmpeg.Input
	if voiced {
		inputs = []ffmpeg.Input{{Path: state.VoicePath}, {Path: state.PathB}}
	} else {
		inputs = []ffmpeg.Input{{Path: state.PathB}}
	}
	state.UsedVoice = voiced

	return graph, inputs, storage.NewBootstrapSidecar(plan), nil
}

// prepareSteady plans and assembles the steady-state graph: both tracks
// normalized to the target loudness, joined by the planned transition, with
// the voice clip ducked on top.
func (s *Stage) prepareSteady(ctx context.Context, state *core.State) (string, []ffmpeg.Input, *storage.Sidecar, error) {
	durA, err := s.executor.ProbeDuration(ctx, state.PathA)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: probing outgoing track: %v", core.ErrRenderFailed, err)
	}
	durB, err := s.executor.ProbeDuration(ctx, state.PathB)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: probing incoming track: %v", core.ErrRenderFailed, err)
	}

	t := state.Transition
	voiced := state.VoicePath != "" && state.VoiceDuration > 0

	// When the plan leaves timing unset, configured values fill in before
	// the planner reaches for its own constants.
	crossfade := t.Crossfade
	if crossfade <= 0 {
		crossfade = s.audio.CrossfadeSec
	}
	voiceLead := t.VoiceLead
	if voiceLead <= 0 {
		voiceLead = s.audio.VoiceLeadSec
	}

	in := timeline.SteadyInput{
		DurationA:       durA,
		DurationB:       durB,
		TransitionStart: t.TransitionStart,
		Crossfade:       crossfade,
		LeadIn:          s.audio.LeadInSec,
		TailBuffer:      s.audio.BEndBufferSec,
		Overlap:         s.audio.OverlapSec,
		VoiceLead:       voiceLead,
	}
	if voiced {
		in.VoiceDuration = state.VoiceDuration
	}
	plan, err := timeline.PlanSteady(in)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: planning segment timing: %v", core.ErrRenderFailed, err)
	}
	for _, w := range plan.Warnings {
		s.log(ctx, slog.LevelWarn, "segment timing warning", slog.String("warning", w))
	}

	sr := s.sampleRate()
	g := fgraph.New()

	// Sequential transitions splice the streams themselves: the outgoing
	// track is cut where the builder stops needing it and the incoming one
	// stays undelayed. The bass swap overlays both on the segment clock.
	seq := transition.Sequential(t.Kind)
	lengthA := plan.LengthA
	if seq {
		if cut := plan.TransitionPos + transition.CutLength(t.Kind, plan.Crossfade); cut < lengthA {
			lengthA = cut
		}
	}

	g.Chain("0:a").
		Filter("aresample", sr).
		Filter("atrim", "duration="+fgraph.Float(lengthA)).
		Filter("asetpts", "PTS-STARTPTS").
		Filter("volume", s.gainFor(ctx, state.PathA)).
		Label("a1")
	b := g.Chain("1:a").
		Filter("aresample", sr).
		Filter("atrim", "duration="+fgraph.Float(plan.EndB)).
		Filter("asetpts", "PTS-STARTPTS").
		Filter("volume", s.gainFor(ctx, state.PathB))
	if !seq {
		b = b.Filter("adelay", fmt.Sprintf("%d|%d", plan.DelayBMs, plan.DelayBMs))
	}
	b.Label("a2")

	mixed := transition.Build(g, t.Kind, "a1", "a2", transition.Params{
		Crossfade:     plan.Crossfade,
		TransitionPos: plan.TransitionPos,
		CrossoverHz:   s.audio.BassCrossoverHz,
	})

	if voiced && plan.Voice != nil {
		duck := s.audio.DuckLevel
		if duck <= 0 {
			duck = timeline.DuckLevel
		}
		window := fmt.Sprintf("between(t,%s,%s)",
			fgraph.Float(plan.Voice.Start), fgraph.Float(plan.Voice.End))

		g.Chain("2:a").
			Filter("aresample", sr).
			Filter("volume", s.gainFor(ctx, state.VoicePath)).
			Filter("adelay", fmt.Sprintf("%d|%d", plan.Voice.DelayMs, plan.Voice.DelayMs)).
			Label("speech")
		g.Chain(mixed).
			Filter("volume", "volume="+fgraph.Float(duck), "enable="+fgraph.Quote(window)).
			Label("ducked")
		g.Chain("ducked", "speech").
			Filter("amix", "inputs=2", "duration=longest", "normalize=0").
			Filter("alimiter", "limit=0.95").
			Label("out")
	} else {
		g.Chain(mixed).
			Filter("alimiter", "limit=0.95").
			Label("out")
	}

	graph, err := g.String()
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: building filter graph: %v", core.ErrRenderFailed, err)
	}

	inputs := []ffmpeg.Input{
		{Path: state.PathA, Seek: plan.StartA},
		{Path: state.PathB},
	}
	if voiced && plan.Voice != nil {
		inputs = append(inputs, ffmpeg.Input{Path: state.VoicePath})
	}
	state.UsedVoice = voiced && plan.Voice != nil

	return graph, inputs, storage.NewSteadySidecar(plan, string(t.Kind)), nil
}

// gainFor returns the static volume argument that brings the file to the
// target loudness. A failed measurement leaves the stream untouched.
func (s *Stage) gainFor(ctx context.Context, path string) string {
	target := s.audio.TargetLUFS
	if target == 0 {
		target = timeline.TargetLUFS
	}
	measured, err := s.executor.ProbeLoudness(ctx, path)
	if err != nil {
		s.log(ctx, slog.LevelWarn, "loudness measurement failed, skipping gain",
			slog.String("path", path),
			slog.String("error", err.Error()))
		measured = target
	}
	return fgraph.Float(target-measured) + "dB"
}

func (s *Stage) sampleRate() string {
	sr := s.audio.SampleRate
	if sr <= 0 {
		sr = 44100
	}
	return strconv.Itoa(sr)
}

// log writes a structured log message if a logger is available.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(ctx, level, msg, attrs...)
	}
}

// Verify interface compliance.
var _ core.Stage = (*Stage)(nil)
