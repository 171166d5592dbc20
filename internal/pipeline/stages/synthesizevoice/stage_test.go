package synthesizevoice

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVoice returns a fixed clip path, or a fixed error.
type fakeVoice struct {
	path string
	err  error
	text string
	dir  string
}

func (f *fakeVoice) Synthesize(ctx context.Context, text string, opts provider.SynthesisOptions) (string, error) {
	f.text = text
	f.dir = opts.Dir
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func newVoiceState(text string) *core.State {
	session := &models.Session{ID: models.NewUUID(), StartedAt: models.Now(), Mode: models.SessionModeContinuous}
	state := core.NewState(session, 1, false)
	if text != "" {
		state.Script = &provider.Script{Text: text}
	}
	return state
}

func TestStage_Execute_NoScript(t *testing.T) {
	s := New(provider.NoopVoice{}, nil)
	state := newVoiceState("")

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, "Skipped: no script", result.Message)
	assert.Empty(t, state.VoicePath)
}

func TestStage_Execute_BlankScript(t *testing.T) {
	s := New(provider.NoopVoice{}, nil)
	state := newVoiceState("   ")

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, "Skipped: no script", result.Message)
}

func TestStage_Execute_SynthesizerUnavailable(t *testing.T) {
	s := New(provider.NoopVoice{}, nil)
	state := newVoiceState("Here we go.")

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, "Skipped: synthesizer unavailable", result.Message)
	assert.False(t, state.HasErrors())
	assert.Empty(t, state.VoicePath)
}

func TestStage_Execute_SynthesisFailure(t *testing.T) {
	voice := &fakeVoice{err: errors.New("quota exceeded")}
	s := New(voice, nil)
	state := newVoiceState("Here we go.")
	state.WorkDir = t.TempDir()

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, "Synthesis failed, segment will be voiceless", result.Message)
	assert.True(t, state.HasErrors())
	assert.Empty(t, state.VoicePath)

	// The synthesizer was pointed at the invocation work dir.
	assert.Equal(t, state.WorkDir, voice.dir)
	assert.Equal(t, "Here we go.", voice.text)
}

func TestStage_Execute_Synthesized(t *testing.T) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}

	clip := filepath.Join(t.TempDir(), "tts_clip.mp3")
	cmd := exec.Command(ffmpegPath,
		"-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-c:a", "libmp3lame", "-b:a", "192k",
		clip)
	if runErr := cmd.Run(); runErr != nil {
		t.Skipf("could not create test clip: %v", runErr)
	}

	s := New(&fakeVoice{path: clip}, ffmpeg.NewExecutor(ffmpegPath, ffprobePath))
	state := newVoiceState("Two tracks from the same night drive.")

	result, err := s.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, clip, state.VoicePath)
	assert.InDelta(t, 2.0, state.VoiceDuration, 0.3)
	assert.Equal(t, 1, result.RecordsProcessed)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, core.ArtifactTypeVoice, result.Artifacts[0].Type)
	assert.Equal(t, clip, result.Artifacts[0].FilePath)
}

func TestStage_Interface(t *testing.T) {
	s := New(provider.NoopVoice{}, nil)

	assert.Equal(t, StageID, s.ID())
	assert.Equal(t, StageName, s.Name())
	assert.Equal(t, core.PhaseSpeaking, s.Phase())
}

func TestNewConstructor(t *testing.T) {
	constructor := NewConstructor()
	stage := constructor(&core.Dependencies{})

	assert.NotNil(t, stage)
	assert.Equal(t, StageID, stage.ID())
}
