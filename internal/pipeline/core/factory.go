package core

import (
	"log/slog"
	"net/http"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/storage"
)

// Dependencies bundles all dependencies needed by graph stages.
// This reduces parameter count and makes dependency injection cleaner.
//
// Providers are never nil: when a capability is unconfigured the daemon
// wires the provider package's noop implementation, whose calls report
// ErrUnavailable so stages take their degraded paths.
type Dependencies struct {
	TrackRepo   repository.TrackRepository
	FeatureRepo repository.TrackFeaturesRepository
	LyricsRepo  repository.LyricsAnalysisRepository
	HistoryRepo repository.PlayHistoryRepository
	SegmentRepo repository.SegmentRepository
	TraceRepo   repository.PlannerTraceRepository

	Metadata provider.MetadataProvider
	Planner  *provider.Planner
	Voice    provider.VoiceSynthesizer

	Cache *cache.Manager
	Store *storage.SegmentStore

	// Art caches cover images. If nil, artwork caching is skipped.
	Art *storage.ArtCache

	// Archive receives durable copies of published segments. If nil,
	// archiving is skipped.
	Archive *storage.Sandbox

	// ArtClient downloads cover images. If nil, artwork caching is skipped.
	ArtClient *http.Client

	Executor *ffmpeg.Executor
	Queue    *queue.Queue

	// Notifier broadcasts playback events. If nil, events are dropped.
	Notifier *events.Notifier

	// Audio carries the render tuning knobs.
	Audio config.AudioConfig

	// ContextFile is the listener profile path, reloaded each invocation.
	ContextFile string

	Logger *slog.Logger
}

// StageConstructor is a function that creates a stage given dependencies.
type StageConstructor func(deps *Dependencies) Stage

// Factory creates configured Orchestrator instances with all required stages.
// One factory exists per graph shape: bootstrap and steady state.
type Factory struct {
	deps              *Dependencies
	stageConstructors []StageConstructor
	bootstrap         bool
}

// NewFactory creates a new graph Factory. bootstrap selects the
// session-opening shape; orchestrators created by the factory carry it
// into their state.
func NewFactory(deps *Dependencies, bootstrap bool) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{
		deps:              deps,
		stageConstructors: make([]StageConstructor, 0),
		bootstrap:         bootstrap,
	}
}

// RegisterStage adds a stage constructor to the factory.
// Stages are executed in the order they are registered.
func (f *Factory) RegisterStage(constructor StageConstructor) {
	f.stageConstructors = append(f.stageConstructors, constructor)
}

// Create creates a new Orchestrator for one invocation against the given
// session. segmentIndex is the index the produced segment will carry.
func (f *Factory) Create(session *models.Session, segmentIndex int) (*Orchestrator, error) {
	if session == nil {
		return nil, NewConfigurationError("session", "session is required")
	}

	stages := make([]Stage, 0, len(f.stageConstructors))
	for _, constructor := range f.stageConstructors {
		stage := constructor(f.deps)
		stages = append(stages, stage)
	}

	state := NewState(session, segmentIndex, f.bootstrap)
	return NewOrchestrator(state, stages, f.deps.Store, f.deps.Logger), nil
}

// OrchestratorFactory defines the interface for creating orchestrators.
type OrchestratorFactory interface {
	Create(session *models.Session, segmentIndex int) (*Orchestrator, error)
}

// Ensure Factory implements OrchestratorFactory.
var _ OrchestratorFactory = (*Factory)(nil)
