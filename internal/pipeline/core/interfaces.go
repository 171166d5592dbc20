// Package core provides the planning graph framework: the stage interface,
// the shared invocation state, and the orchestrator that runs one graph
// invocation through to a rendered segment.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/usercontext"
)

// Phase is the lifecycle position of a graph invocation. Each stage declares
// the phase it runs under; the orchestrator stamps it on the state before
// executing the stage and settles on PhaseDone or PhaseFailed at the end.
type Phase string

const (
	// PhasePending is the phase before any stage has run.
	PhasePending Phase = "PENDING"

	// PhaseSelecting covers track selection.
	PhaseSelecting Phase = "SELECTING"

	// PhaseFetching covers cache checks and audio downloads.
	PhaseFetching Phase = "FETCHING"

	// PhasePlanning covers transition planning and script writing.
	PhasePlanning Phase = "PLANNING"

	// PhaseSpeaking covers voice synthesis.
	PhaseSpeaking Phase = "SPEAKING"

	// PhaseRendering covers the ffmpeg render.
	PhaseRendering Phase = "RENDERING"

	// PhasePersisting covers segment and history persistence plus handoff
	// to the queue.
	PhasePersisting Phase = "PERSISTING"

	// PhaseDone means the invocation produced a segment.
	PhaseDone Phase = "DONE"

	// PhaseFailed means the invocation stopped short of a segment.
	PhaseFailed Phase = "FAILED"
)

// Stage represents a single node in the planning graph.
// Each stage reads what earlier stages left on the state and writes its own
// contribution back.
type Stage interface {
	// ID returns a unique identifier for the stage (e.g., "plan_next_track").
	ID() string

	// Name returns a human-readable name for the stage (e.g., "Plan Next Track").
	Name() string

	// Phase returns the lifecycle phase the stage runs under.
	Phase() Phase

	// Execute performs the stage's work against the shared state.
	Execute(ctx context.Context, state *State) (*StageResult, error)

	// Cleanup performs any necessary cleanup after execution.
	// Called regardless of success or failure.
	Cleanup(ctx context.Context) error
}

// State holds all data shared between graph stages for one invocation.
type State struct {
	// InvocationID uniquely identifies this graph invocation.
	InvocationID string

	// Session is the listening session the segment belongs to.
	Session *models.Session

	// SegmentIndex is the index the produced segment will carry.
	SegmentIndex int

	// Bootstrap is true for the session-opening invocation, which has no
	// outgoing track.
	Bootstrap bool

	// Phase is the current lifecycle phase, maintained by the orchestrator.
	Phase Phase

	// User is the listener profile loaded for this invocation.
	User usercontext.Context

	// TrackA is the outgoing track; nil during bootstrap.
	TrackA *models.Track

	// TrackB is the incoming track the segment introduces.
	TrackB *models.Track

	// PathA and PathB are the absolute cached audio paths. PathB empty
	// after the fetch phase is a fetch failure; PathA is always set for
	// steady invocations.
	PathA string
	PathB string

	// Transition is the planned transition; nil until planning, and nil
	// for bootstrap invocations.
	Transition *provider.TransitionPlan

	// Script is the voice script; nil means the segment goes out voiceless.
	Script *provider.Script

	// VoicePath is the synthesized clip's absolute path; empty when no
	// voice made it into the invocation.
	VoicePath string

	// VoiceDuration is the probed length of the voice clip in seconds.
	VoiceDuration float64

	// WorkDir is the scratch directory for this invocation's intermediate
	// files. Created by the orchestrator, released when the invocation ends.
	WorkDir string

	// SegmentName is the published segment's filename.
	SegmentName string

	// SegmentPath and SidecarPath are the published absolute paths.
	SegmentPath string
	SidecarPath string

	// SegmentDuration is the probed duration of the rendered file.
	SegmentDuration float64

	// UsedVoice is true when the voice clip was mixed into the render.
	UsedVoice bool

	// Segment is the persisted segment row, set by the persistence stage.
	Segment *models.Segment

	// mu guards the collections below. Stages that run concurrently during
	// the planning phase append to them from separate goroutines.
	mu sync.Mutex

	// Trace collects the planning decisions behind this segment, in order.
	Trace []events.DecisionStep

	// StartTime records when the invocation began.
	StartTime time.Time

	// Errors collects non-fatal errors during execution.
	Errors []error

	// Artifacts holds output artifacts from each stage.
	Artifacts map[string][]Artifact

	// Metadata stores arbitrary stage-specific data.
	Metadata map[string]any
}

// NewState creates a new invocation state for the given session and
// segment index.
func NewState(session *models.Session, segmentIndex int, bootstrap bool) *State {
	return &State{
		InvocationID: ulid.Make().String(),
		Session:      session,
		SegmentIndex: segmentIndex,
		Bootstrap:    bootstrap,
		Phase:        PhasePending,
		User:         usercontext.Default(),
		StartTime:    time.Now(),
		Errors:       make([]error, 0),
		Artifacts:    make(map[string][]Artifact),
		Metadata:     make(map[string]any),
	}
}

// AddError adds a non-fatal error to the state.
func (s *State) AddError(err error) {
	if err != nil {
		s.mu.Lock()
		s.Errors = append(s.Errors, err)
		s.mu.Unlock()
	}
}

// HasErrors returns true if any non-fatal errors were recorded.
func (s *State) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors) > 0
}

// AddDecision appends one planning decision to the invocation's trace.
func (s *State) AddDecision(step, detail string) {
	s.mu.Lock()
	s.Trace = append(s.Trace, events.DecisionStep{Step: step, Detail: detail})
	s.mu.Unlock()
}

// Duration returns the elapsed time since the invocation started.
func (s *State) Duration() time.Duration {
	return time.Since(s.StartTime)
}

// SetMetadata stores a value in the metadata map.
func (s *State) SetMetadata(key string, value any) {
	s.mu.Lock()
	s.Metadata[key] = value
	s.mu.Unlock()
}

// GetMetadata retrieves a value from the metadata map.
func (s *State) GetMetadata(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Metadata[key]
	return v, ok
}

// AddArtifact adds an artifact produced by a stage.
func (s *State) AddArtifact(stageID string, artifact Artifact) {
	s.mu.Lock()
	s.Artifacts[stageID] = append(s.Artifacts[stageID], artifact)
	s.mu.Unlock()
}

// GetArtifacts returns all artifacts produced by a stage.
func (s *State) GetArtifacts(stageID string) []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Artifacts[stageID]
}

// GetArtifactsByType returns all artifacts of a specific type.
func (s *State) GetArtifactsByType(artifactType ArtifactType) []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Artifact
	for _, artifacts := range s.Artifacts {
		for _, a := range artifacts {
			if a.Type == artifactType {
				result = append(result, a)
			}
		}
	}
	return result
}

// StageResult contains the outcome of a stage execution.
type StageResult struct {
	// Artifacts produced by this stage.
	Artifacts []Artifact

	// RecordsProcessed is the count of items the stage worked through,
	// e.g. candidates considered or rows upserted.
	RecordsProcessed int

	// Duration is the execution time.
	Duration time.Duration

	// Message is an optional summary message.
	Message string
}

// Result represents the outcome of one graph invocation.
type Result struct {
	// Success indicates if the invocation produced a segment.
	Success bool

	// FailureKind classifies the failure when Success is false. Empty for
	// successful invocations and for cancellations.
	FailureKind FailureKind

	// SegmentIndex is the index of the produced segment.
	SegmentIndex int

	// SegmentName is the published segment's filename.
	SegmentName string

	// SegmentPath and SidecarPath are the published absolute paths.
	SegmentPath string
	SidecarPath string

	// DurationSec is the probed duration of the rendered segment.
	DurationSec float64

	// Duration is the total invocation wall time.
	Duration time.Duration

	// StageResults contains results from each stage.
	StageResults map[string]*StageResult

	// Errors contains any errors that occurred, fatal and non-fatal.
	Errors []error
}
