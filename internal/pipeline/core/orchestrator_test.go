package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSession() *models.Session {
	return &models.Session{
		ID:        models.NewUUID(),
		StartedAt: models.Now(),
		Mode:      models.SessionModeContinuous,
	}
}

// fakeStage is a scriptable Stage for orchestrator and factory tests.
type fakeStage struct {
	id       string
	name     string
	phase    Phase
	execute  func(ctx context.Context, state *State) (*StageResult, error)
	executed bool
	cleaned  bool
}

func (s *fakeStage) ID() string   { return s.id }
func (s *fakeStage) Name() string { return s.name }
func (s *fakeStage) Phase() Phase { return s.phase }

func (s *fakeStage) Execute(ctx context.Context, state *State) (*StageResult, error) {
	s.executed = true
	if s.execute != nil {
		return s.execute(ctx, state)
	}
	return &StageResult{}, nil
}

func (s *fakeStage) Cleanup(ctx context.Context) error {
	s.cleaned = true
	return nil
}

func TestOrchestrator_Execute_Success(t *testing.T) {
	state := NewState(newTestSession(), 2, false)

	render := &fakeStage{id: "render", name: "Render", phase: PhaseRendering,
		execute: func(ctx context.Context, st *State) (*StageResult, error) {
			st.SegmentName = "mix_0a1b2c3d.mp3"
			st.SegmentPath = "/segments/mix_0a1b2c3d.mp3"
			st.SidecarPath = "/segments/mix_0a1b2c3d.mp3.json"
			st.SegmentDuration = 212.5
			artifact := NewArtifact(ArtifactTypeAudio, "render").WithFilePath(st.SegmentPath)
			return &StageResult{Artifacts: []Artifact{artifact}, Message: "rendered"}, nil
		},
	}
	persist := &fakeStage{id: "persist", name: "Persist", phase: PhasePersisting}

	orch := NewOrchestrator(state, []Stage{render, persist}, nil, testLogger())
	result, err := orch.Execute(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, FailureNone, result.FailureKind)
	assert.Equal(t, 2, result.SegmentIndex)
	assert.Equal(t, "mix_0a1b2c3d.mp3", result.SegmentName)
	assert.Equal(t, "/segments/mix_0a1b2c3d.mp3", result.SegmentPath)
	assert.Equal(t, 212.5, result.DurationSec)
	assert.Equal(t, PhaseDone, state.Phase)

	require.Len(t, result.StageResults, 2)
	assert.Contains(t, result.StageResults, "render")
	assert.Contains(t, result.StageResults, "persist")
	assert.Equal(t, "rendered", result.StageResults["render"].Message)

	assert.Len(t, state.GetArtifacts("render"), 1)
	assert.True(t, render.cleaned)
	assert.True(t, persist.cleaned)
}

func TestOrchestrator_Execute_StageFailure(t *testing.T) {
	state := NewState(newTestSession(), 1, false)

	fetch := &fakeStage{id: "fetch", name: "Fetch Track", phase: PhaseFetching}
	render := &fakeStage{id: "render", name: "Render", phase: PhaseRendering,
		execute: func(ctx context.Context, st *State) (*StageResult, error) {
			return nil, fmt.Errorf("no incoming track audio: %w", ErrRenderFailed)
		},
	}
	persist := &fakeStage{id: "persist", name: "Persist", phase: PhasePersisting}

	orch := NewOrchestrator(state, []Stage{fetch, render, persist}, nil, testLogger())
	result, err := orch.Execute(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.False(t, result.Success)
	assert.Equal(t, FailureRender, result.FailureKind)
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.False(t, persist.executed)

	require.Len(t, result.Errors, 1)
	var stageErr *StageError
	require.ErrorAs(t, result.Errors[0], &stageErr)
	assert.Equal(t, "render", stageErr.StageID)

	assert.True(t, fetch.cleaned)
	assert.True(t, render.cleaned)
	assert.False(t, persist.cleaned)
}

func TestOrchestrator_Execute_ContextCancelled(t *testing.T) {
	state := NewState(newTestSession(), 0, true)
	stage := &fakeStage{id: "select", name: "Select", phase: PhaseSelecting}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(state, []Stage{stage}, nil, testLogger())
	result, err := orch.Execute(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Success)
	assert.Equal(t, FailureNone, result.FailureKind)
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.False(t, stage.executed)
}

func TestOrchestrator_Execute_DuplicateSession(t *testing.T) {
	session := newTestSession()

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &fakeStage{id: "block", name: "Block", phase: PhaseSelecting,
		execute: func(ctx context.Context, st *State) (*StageResult, error) {
			close(started)
			<-release
			return &StageResult{}, nil
		},
	}

	first := NewOrchestrator(NewState(session, 0, true), []Stage{blocking}, nil, testLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = first.Execute(context.Background())
	}()
	<-started

	second := NewOrchestrator(NewState(session, 1, false), nil, nil, testLogger())
	_, err := second.Execute(context.Background())
	assert.ErrorIs(t, err, ErrGraphAlreadyRunning)

	close(release)
	<-done

	// The slot frees up once the first invocation finishes.
	third := NewOrchestrator(NewState(session, 1, false), nil, nil, testLogger())
	_, err = third.Execute(context.Background())
	assert.NoError(t, err)
}

func TestOrchestrator_Execute_WorkDir(t *testing.T) {
	store, err := storage.NewSegmentStore(t.TempDir())
	require.NoError(t, err)

	var workDir string
	stage := &fakeStage{id: "probe", name: "Probe", phase: PhaseRendering,
		execute: func(ctx context.Context, st *State) (*StageResult, error) {
			workDir = st.WorkDir
			if _, statErr := os.Stat(st.WorkDir); statErr != nil {
				return nil, statErr
			}
			return &StageResult{}, nil
		},
	}

	orch := NewOrchestrator(NewState(newTestSession(), 0, true), []Stage{stage}, store, testLogger())
	_, err = orch.Execute(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, workDir)
	assert.DirExists(t, filepath.Dir(workDir))
	assert.NoDirExists(t, workDir)
}

func TestOrchestrator_NilLogger(t *testing.T) {
	orch := NewOrchestrator(NewState(newTestSession(), 0, true), nil, nil, nil)
	result, err := orch.Execute(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success)
}
