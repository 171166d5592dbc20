// Package pipeline provides the planning graph that produces one rendered
// segment per invocation. Each stage implements the Stage interface and
// operates on shared State.
//
// The pipeline is organized into several sub-packages:
//   - core: Orchestrator, interfaces, and base types
//   - shared: Utilities shared between stages
//   - stages/*: Individual stage implementations
//
// Two graph shapes exist. The bootstrap shape opens a session: it selects
// the first track, caches and enriches it, writes and speaks the intro,
// and renders the opening segment. The steady shape produces every segment
// after that: it plans the next track from play history, runs transition
// planning and script writing in parallel, and renders the crossfaded
// handoff.
package pipeline

import (
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/emitready"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/ensurecached"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/fetchtrack"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/parallelplan"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/persistmetadata"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/persistsegment"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/plannext"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/rendersegment"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/selectinitial"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/synthesizevoice"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/writescript"
)

// Re-export core types for convenience.
type (
	// Stage is a single step in the graph.
	Stage = core.Stage

	// State holds shared data between stages.
	State = core.State

	// Result is the outcome of one graph invocation.
	Result = core.Result

	// StageResult is the outcome of a single stage.
	StageResult = core.StageResult

	// Orchestrator executes stages in sequence.
	Orchestrator = core.Orchestrator

	// OrchestratorFactory creates orchestrators.
	OrchestratorFactory = core.OrchestratorFactory

	// Factory creates orchestrators.
	Factory = core.Factory

	// Dependencies bundles stage dependencies.
	Dependencies = core.Dependencies

	// Builder provides fluent dependency construction.
	Builder = core.Builder

	// Artifact represents stage output.
	Artifact = core.Artifact

	// ArtifactType identifies artifact content.
	ArtifactType = core.ArtifactType

	// Phase is the lifecycle position of an invocation.
	Phase = core.Phase

	// FailureKind classifies why an invocation failed.
	FailureKind = core.FailureKind

	// StageConstructor creates stages from dependencies.
	StageConstructor = core.StageConstructor
)

// Re-export artifact types.
const (
	ArtifactTypeAudio   = core.ArtifactTypeAudio
	ArtifactTypeSidecar = core.ArtifactTypeSidecar
	ArtifactTypeVoice   = core.ArtifactTypeVoice
	ArtifactTypeArtwork = core.ArtifactTypeArtwork
)

// Re-export invocation phases.
const (
	PhasePending    = core.PhasePending
	PhaseSelecting  = core.PhaseSelecting
	PhaseFetching   = core.PhaseFetching
	PhasePlanning   = core.PhasePlanning
	PhaseSpeaking   = core.PhaseSpeaking
	PhaseRendering  = core.PhaseRendering
	PhasePersisting = core.PhasePersisting
	PhaseDone       = core.PhaseDone
	PhaseFailed     = core.PhaseFailed
)

// Re-export failure kinds.
const (
	FailureNone        = core.FailureNone
	FailureNoCandidate = core.FailureNoCandidate
	FailureFetch       = core.FailureFetch
	FailureRender      = core.FailureRender
	FailurePersist     = core.FailurePersist
)

// Re-export errors.
var (
	ErrNoCandidate          = core.ErrNoCandidate
	ErrFetchFailed          = core.ErrFetchFailed
	ErrRenderFailed         = core.ErrRenderFailed
	ErrPersistFailed        = core.ErrPersistFailed
	ErrGraphAlreadyRunning  = core.ErrGraphAlreadyRunning
	ErrStageNotFound        = core.ErrStageNotFound
	ErrInvalidConfiguration = core.ErrInvalidConfiguration
)

// NewBuilder creates a new dependency builder.
func NewBuilder() *Builder {
	return core.NewBuilder()
}

// NewState creates a new invocation state.
var NewState = core.NewState

// ClassifyFailure maps an invocation error to its failure kind.
var ClassifyFailure = core.ClassifyFailure

// NewBootstrapFactory creates the factory for the session-opening graph:
// one invocation that selects the first track and renders the intro
// segment.
func NewBootstrapFactory(deps *Dependencies) *Factory {
	factory := core.NewFactory(deps, true)

	factory.RegisterStage(selectinitial.NewConstructor())
	factory.RegisterStage(ensurecached.NewConstructor())
	factory.RegisterStage(persistmetadata.NewConstructor())
	factory.RegisterStage(writescript.NewIntroConstructor())
	factory.RegisterStage(synthesizevoice.NewConstructor())
	factory.RegisterStage(rendersegment.NewBootstrapConstructor())
	factory.RegisterStage(persistsegment.NewConstructor())
	factory.RegisterStage(emitready.NewConstructor())

	return factory
}

// NewSteadyFactory creates the factory for the steady-state graph: each
// invocation plans the next track and renders one transition segment.
func NewSteadyFactory(deps *Dependencies) *Factory {
	factory := core.NewFactory(deps, false)

	factory.RegisterStage(plannext.NewConstructor())
	factory.RegisterStage(ensurecached.NewConstructor())
	factory.RegisterStage(fetchtrack.NewConstructor())
	factory.RegisterStage(parallelplan.NewConstructor())
	factory.RegisterStage(synthesizevoice.NewConstructor())
	factory.RegisterStage(rendersegment.NewSteadyConstructor())
	factory.RegisterStage(persistsegment.NewConstructor())
	factory.RegisterStage(emitready.NewConstructor())

	return factory
}

// Stage IDs for reference.
const (
	StageIDSelectInitial   = selectinitial.StageID
	StageIDPlanNext        = plannext.StageID
	StageIDEnsureCached    = ensurecached.StageID
	StageIDFetchTrack      = fetchtrack.StageID
	StageIDPersistMetadata = persistmetadata.StageID
	StageIDIntroScript     = writescript.IntroStageID
	StageIDDJScript        = writescript.TransitionStageID
	StageIDParallelPlan    = parallelplan.StageID
	StageIDSynthesizeVoice = synthesizevoice.StageID
	StageIDRenderBootstrap = rendersegment.BootstrapStageID
	StageIDRenderSteady    = rendersegment.SteadyStageID
	StageIDPersistSegment  = persistsegment.StageID
	StageIDEmitReady       = emitready.StageID
)
