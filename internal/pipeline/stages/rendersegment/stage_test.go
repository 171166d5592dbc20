package rendersegment

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderState(segmentIndex int, bootstrap bool) *core.State {
	session := &models.Session{ID: models.NewUUID(), StartedAt: models.Now(), Mode: models.SessionModeContinuous}
	return core.NewState(session, segmentIndex, bootstrap)
}

// renderTestTone writes a sine-tone MP3 so the stage has real audio to cut.
func renderTestTone(t *testing.T, ffmpegPath, dir, name, duration string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	cmd := exec.Command(ffmpegPath, "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+duration,
		"-c:a", "libmp3lame", "-b:a", "192k",
		path)
	if runErr := cmd.Run(); runErr != nil {
		t.Skipf("could not create test tone: %v", runErr)
	}
	return path
}

func realTools(t *testing.T) (string, string) {
	t.Helper()

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return ffmpegPath, ffprobePath
}

func TestStage_Execute_NoIncomingAudio(t *testing.T) {
	s := NewBootstrap(nil, nil, config.AudioConfig{})
	state := newRenderState(0, true)

	_, err := s.Execute(context.Background(), state)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRenderFailed)
	assert.Contains(t, err.Error(), "no incoming track audio")
}

func TestStage_Execute_SteadyValidation(t *testing.T) {
	tests := []struct {
		name    string
		pathA   string
		plan    *provider.TransitionPlan
		wantMsg string
	}{
		{
			name:    "missing outgoing audio",
			pathA:   "",
			plan:    provider.DefaultTransitionPlan(200),
			wantMsg: "no outgoing track audio",
		},
		{
			name:    "missing transition plan",
			pathA:   "/tmp/outgoing.mp3",
			plan:    nil,
			wantMsg: "no transition plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSteady(nil, nil, config.AudioConfig{})
			state := newRenderState(1, false)
			state.PathA = tt.pathA
			state.PathB = "/tmp/incoming.mp3"
			state.Transition = tt.plan

			_, err := s.Execute(context.Background(), state)

			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrRenderFailed)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestStage_Execute_RendersBootstrap(t *testing.T) {
	ffmpegPath, ffprobePath := realTools(t)

	store, err := storage.NewSegmentStore(t.TempDir())
	require.NoError(t, err)
	workDir, err := store.WorkDir()
	require.NoError(t, err)

	tone := renderTestTone(t, ffmpegPath, t.TempDir(), "opening.mp3", "2")

	s := NewBootstrap(ffmpeg.NewExecutor(ffmpegPath, ffprobePath), store, config.AudioConfig{SampleRate: 44100})
	state := newRenderState(0, true)
	state.WorkDir = workDir
	state.PathB = tone

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsProcessed)
	assert.Contains(t, result.Message, "Rendered")

	assert.True(t, strings.HasPrefix(state.SegmentName, storage.SegmentPrefixIntro+"_"), state.SegmentName)
	assert.FileExists(t, state.SegmentPath)
	assert.FileExists(t, state.SidecarPath)
	assert.InDelta(t, 2.0, state.SegmentDuration, 0.4)
	assert.False(t, state.UsedVoice)

	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, core.ArtifactTypeAudio, result.Artifacts[0].Type)
	assert.Equal(t, core.ArtifactTypeSidecar, result.Artifacts[1].Type)

	sc, err := store.ReadSidecar(state.SegmentName)
	require.NoError(t, err)
	assert.Equal(t, storage.TransitionTypeIntro, sc.Transition.Type)
	assert.InDelta(t, state.SegmentDuration, sc.Render.ActualDuration, 0.01)
}

func TestStage_Execute_RendersTransition(t *testing.T) {
	ffmpegPath, ffprobePath := realTools(t)

	toneDir := t.TempDir()
	pathA := renderTestTone(t, ffmpegPath, toneDir, "outgoing.mp3", "3")
	pathB := renderTestTone(t, ffmpegPath, toneDir, "incoming.mp3", "3")
	voice := renderTestTone(t, ffmpegPath, toneDir, "voice.mp3", "1")

	executor := ffmpeg.NewExecutor(ffmpegPath, ffprobePath)

	tests := []struct {
		name  string
		kind  models.TransitionKind
		voice bool
	}{
		{name: "blend", kind: models.TransitionBlend},
		{name: "blend with voice", kind: models.TransitionBlend, voice: true},
		{name: "bass swap", kind: models.TransitionBassSwap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := storage.NewSegmentStore(t.TempDir())
			require.NoError(t, err)
			workDir, err := store.WorkDir()
			require.NoError(t, err)

			s := NewSteady(executor, store, config.AudioConfig{SampleRate: 44100})
			state := newRenderState(1, false)
			state.WorkDir = workDir
			state.PathA = pathA
			state.PathB = pathB
			state.Transition = &provider.TransitionPlan{
				Kind:            tt.kind,
				TransitionStart: 1.5,
				Crossfade:       1,
			}
			if tt.voice {
				state.VoicePath = voice
				state.VoiceDuration = 1.0
			}

			result, err := s.Execute(context.Background(), state)

			require.NoError(t, err)
			assert.Equal(t, 1, result.RecordsProcessed)
			assert.True(t, strings.HasPrefix(state.SegmentName, storage.SegmentPrefixMix+"_"), state.SegmentName)
			assert.FileExists(t, state.SegmentPath)
			assert.FileExists(t, state.SidecarPath)
			assert.Equal(t, tt.voice, state.UsedVoice)

			// Short tones are carried whole, so the segment spans the
			// outgoing tail plus most of the incoming track.
			assert.Greater(t, state.SegmentDuration, 3.5)
			assert.Less(t, state.SegmentDuration, 7.0)

			sc, err := store.ReadSidecar(state.SegmentName)
			require.NoError(t, err)
			assert.Equal(t, string(tt.kind), sc.Transition.Type)
			assert.InDelta(t, state.SegmentDuration, sc.Render.ActualDuration, 0.01)
			if tt.voice {
				require.NotNil(t, sc.TTS)
			} else {
				assert.Nil(t, sc.TTS)
			}
		})
	}
}

func TestStage_ConfiguredTimingFillsPlan(t *testing.T) {
	ffmpegPath, ffprobePath := realTools(t)

	toneDir := t.TempDir()
	pathA := renderTestTone(t, ffmpegPath, toneDir, "outgoing.mp3", "3")
	pathB := renderTestTone(t, ffmpegPath, toneDir, "incoming.mp3", "3")
	voice := renderTestTone(t, ffmpegPath, toneDir, "voice.mp3", "1")

	store, err := storage.NewSegmentStore(t.TempDir())
	require.NoError(t, err)
	workDir, err := store.WorkDir()
	require.NoError(t, err)

	audio := config.AudioConfig{
		SampleRate:      44100,
		CrossfadeSec:    1.5,
		VoiceLeadSec:    0.5,
		BassCrossoverHz: 180,
	}
	s := NewSteady(ffmpeg.NewExecutor(ffmpegPath, ffprobePath), store, audio)
	state := newRenderState(1, false)
	state.WorkDir = workDir
	state.PathA = pathA
	state.PathB = pathB
	state.VoicePath = voice
	state.VoiceDuration = 1.0
	// The plan names only the kind and start; configured timing fills
	// the rest before the planner falls back to its own constants.
	state.Transition = &provider.TransitionPlan{
		Kind:            models.TransitionBassSwap,
		TransitionStart: 1.5,
	}

	graph, _, sc, err := s.prepareSteady(context.Background(), state)

	require.NoError(t, err)
	assert.InDelta(t, 1.5, sc.Transition.CrossfadeDuration, 1e-9)
	require.NotNil(t, sc.TTS)
	assert.InDelta(t, 1.0, sc.TTS.Start, 1e-9)

	// The configured crossover reaches the bass swap's band split.
	assert.Contains(t, graph, "lowpass=f=180")
	assert.Contains(t, graph, "highpass=f=180")
	assert.NotContains(t, graph, "f=250")
}

func TestStage_Interface(t *testing.T) {
	bootstrap := NewBootstrap(nil, nil, config.AudioConfig{})
	assert.Equal(t, BootstrapStageID, bootstrap.ID())
	assert.Equal(t, BootstrapStageName, bootstrap.Name())
	assert.Equal(t, core.PhaseRendering, bootstrap.Phase())

	steady := NewSteady(nil, nil, config.AudioConfig{})
	assert.Equal(t, SteadyStageID, steady.ID())
	assert.Equal(t, SteadyStageName, steady.Name())
	assert.Equal(t, core.PhaseRendering, steady.Phase())
}

func TestNewBootstrapConstructor(t *testing.T) {
	constructor := NewBootstrapConstructor()
	stage := constructor(&core.Dependencies{})

	assert.NotNil(t, stage)
	assert.Equal(t, BootstrapStageID, stage.ID())
}

func TestNewSteadyConstructor(t *testing.T) {
	constructor := NewSteadyConstructor()
	stage := constructor(&core.Dependencies{})

	assert.NotNil(t, stage)
	assert.Equal(t, SteadyStageID, stage.ID())
}
