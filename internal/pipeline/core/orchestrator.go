package core

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/storage"
)

// activeExecutions tracks which sessions have an invocation running.
var (
	activeExecutions   = make(map[models.UUID]bool)
	activeExecutionsMu sync.Mutex
)

// Orchestrator executes one graph invocation: a sequence of stages that
// turns a planning decision into a published segment.
type Orchestrator struct {
	stages []Stage
	state  *State
	store  *storage.SegmentStore
	logger *slog.Logger
}

// NewOrchestrator creates a new Orchestrator with the given stages.
// store provides the invocation's scratch directory; a nil store skips
// work-directory handling, which only makes sense in tests.
func NewOrchestrator(state *State, stages []Stage, store *storage.SegmentStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		stages: stages,
		state:  state,
		store:  store,
		logger: logger,
	}
}

// Execute runs all stages in sequence.
// Returns a Result with execution details and any errors. A fatal stage
// error moves the invocation to PhaseFailed with a classified failure kind;
// the work directory is released on every path.
func (o *Orchestrator) Execute(ctx context.Context) (*Result, error) {
	result := &Result{
		Success:      false,
		SegmentIndex: o.state.SegmentIndex,
		StageResults: make(map[string]*StageResult),
	}

	// Prevent duplicate invocations for the same session
	if !o.acquireExecution() {
		return result, ErrGraphAlreadyRunning
	}
	defer o.releaseExecution()

	// Create the scratch directory for voice clips and the raw render
	if o.store != nil {
		workDir, err := o.store.WorkDir()
		if err != nil {
			result.Errors = append(result.Errors, err)
			return result, err
		}
		o.state.WorkDir = workDir
		defer func() {
			if err := o.store.ReleaseWorkDir(workDir); err != nil {
				o.logger.Warn("failed to release work directory",
					slog.String("path", workDir),
					slog.String("error", err.Error()),
				)
			} else {
				o.logger.Debug("released work directory",
					slog.String("path", workDir),
				)
			}
		}()
	}

	o.logger.InfoContext(ctx, "starting graph invocation",
		slog.String("invocation_id", o.state.InvocationID),
		slog.String("session_id", o.state.Session.ID.String()),
		slog.Int("segment_index", o.state.SegmentIndex),
		slog.Bool("bootstrap", o.state.Bootstrap),
		slog.Int("stage_count", len(o.stages)),
	)

	startTime := time.Now()

	// Execute each stage
	for i, stage := range o.stages {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, ctx.Err())
			result.Duration = time.Since(startTime)
			o.state.Phase = PhaseFailed
			o.cleanupStages(ctx, o.stages[:i+1])
			return result, ctx.Err()
		default:
		}

		o.state.Phase = stage.Phase()

		stageResult, err := o.executeStage(ctx, i, stage)
		result.StageResults[stage.ID()] = stageResult

		if err != nil {
			result.Errors = append(result.Errors, NewStageError(stage.ID(), stage.Name(), err))
			result.FailureKind = ClassifyFailure(err)
			result.Duration = time.Since(startTime)
			o.state.Phase = PhaseFailed
			o.logger.ErrorContext(ctx, "graph invocation failed",
				slog.String("invocation_id", o.state.InvocationID),
				slog.Int("segment_index", o.state.SegmentIndex),
				slog.String("failed_stage", stage.ID()),
				slog.String("failure_kind", string(result.FailureKind)),
				slog.Duration("duration", result.Duration),
			)
			o.cleanupStages(ctx, o.stages[:i+1])
			return result, err
		}

		// Force GC between stages to manage memory
		o.cleanupBetweenStages()
	}

	o.state.Phase = PhaseDone

	// Populate result from the final state
	result.Success = true
	result.SegmentName = o.state.SegmentName
	result.SegmentPath = o.state.SegmentPath
	result.SidecarPath = o.state.SidecarPath
	result.DurationSec = o.state.SegmentDuration
	result.Duration = time.Since(startTime)
	result.Errors = o.state.Errors

	o.logger.InfoContext(ctx, "graph invocation completed",
		slog.String("invocation_id", o.state.InvocationID),
		slog.Int("segment_index", o.state.SegmentIndex),
		slog.String("segment_name", result.SegmentName),
		slog.Float64("segment_duration_sec", result.DurationSec),
		slog.Duration("duration", result.Duration),
		slog.Int("non_fatal_errors", len(o.state.Errors)),
	)

	// Cleanup all stages
	o.cleanupStages(ctx, o.stages)

	return result, nil
}

// executeStage runs a single stage and handles logging.
func (o *Orchestrator) executeStage(ctx context.Context, index int, stage Stage) (*StageResult, error) {
	stageStart := time.Now()

	o.logger.InfoContext(ctx, "executing stage",
		slog.Int("stage_num", index+1),
		slog.Int("total_stages", len(o.stages)),
		slog.String("stage_id", stage.ID()),
		slog.String("phase", string(stage.Phase())),
	)

	stageResult, err := stage.Execute(ctx, o.state)
	if stageResult == nil {
		stageResult = &StageResult{}
	}
	stageResult.Duration = time.Since(stageStart)

	if err != nil {
		o.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage_id", stage.ID()),
			slog.String("stage_name", stage.Name()),
			slog.String("error", err.Error()),
			slog.Duration("duration", stageResult.Duration),
		)
		return stageResult, err
	}

	// Register artifacts in state
	for _, artifact := range stageResult.Artifacts {
		o.state.AddArtifact(stage.ID(), artifact)
	}

	o.logger.InfoContext(ctx, "stage completed",
		slog.String("stage_id", stage.ID()),
		slog.Duration("duration", stageResult.Duration),
		slog.Int("records_processed", stageResult.RecordsProcessed),
		slog.Int("artifacts_produced", len(stageResult.Artifacts)),
	)

	return stageResult, nil
}

// cleanupStages calls Cleanup on all given stages.
func (o *Orchestrator) cleanupStages(ctx context.Context, stages []Stage) {
	for _, stage := range stages {
		if err := stage.Cleanup(ctx); err != nil {
			o.logger.Warn("stage cleanup failed",
				slog.String("stage_id", stage.ID()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// cleanupBetweenStages performs memory cleanup between graph stages.
func (o *Orchestrator) cleanupBetweenStages() {
	runtime.GC()
}

// acquireExecution tries to acquire the execution lock for this session.
func (o *Orchestrator) acquireExecution() bool {
	activeExecutionsMu.Lock()
	defer activeExecutionsMu.Unlock()

	if activeExecutions[o.state.Session.ID] {
		return false
	}
	activeExecutions[o.state.Session.ID] = true
	return true
}

// releaseExecution releases the execution lock for this session.
func (o *Orchestrator) releaseExecution() {
	activeExecutionsMu.Lock()
	defer activeExecutionsMu.Unlock()
	delete(activeExecutions, o.state.Session.ID)
}

// State returns the current invocation state (for testing).
func (o *Orchestrator) State() *State {
	return o.state
}

// Stages returns the configured stages (for testing).
func (o *Orchestrator) Stages() []Stage {
	return o.stages
}
