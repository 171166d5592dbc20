// Package parallelplan runs the transition planner and the script writer
// side by side. The two branches touch disjoint state fields and neither
// depends on the other's output, so a steady invocation overlaps their
// planner round-trips. A failed branch contributes nothing: the segment
// renders voiceless without a script, and the renderer rejects the
// invocation without a transition plan.
package parallelplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/plantransition"
	"github.com/jmylchreest/mixarr/internal/pipeline/stages/writescript"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "parallel_planning"
	// StageName is the human-readable name for this stage.
	StageName = "Parallel Planning"
)

// Stage executes its child stages concurrently against the shared state.
type Stage struct {
	shared.BaseStage
	stages []core.Stage
	logger *slog.Logger
}

// New creates a parallel stage over the given children.
func New(stages ...core.Stage) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName, core.PhasePlanning),
		stages:    stages,
	}
}

// NewConstructor returns a StageConstructor that wires the steady planning
// branches: plan_transition and write_transition_script.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(
			plantransition.NewConstructor()(deps),
			writescript.NewTransitionConstructor()(deps),
		)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute runs every child in its own goroutine and waits for all of them.
// Child errors are recorded as non-fatal on the state; the downstream
// stages decide whether the missing contribution matters.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	results := make([]*core.StageResult, len(s.stages))
	errs := make([]error, len(s.stages))

	var wg sync.WaitGroup
	for i, stage := range s.stages {
		wg.Add(1)
		go func(i int, stage core.Stage) {
			defer wg.Done()
			results[i], errs[i] = stage.Execute(ctx, state)
		}(i, stage)
	}
	wg.Wait()

	completed := 0
	for i, stage := range s.stages {
		if errs[i] != nil {
			state.AddError(fmt.Errorf("planning branch %s: %w", stage.ID(), errs[i]))
			s.log(ctx, slog.LevelWarn, "planning branch failed",
				slog.String("branch", stage.ID()),
				slog.String("error", errs[i].Error()))
			continue
		}
		completed++
		if results[i] == nil {
			continue
		}
		result.Artifacts = append(result.Artifacts, results[i].Artifacts...)
		result.RecordsProcessed += results[i].RecordsProcessed
	}

	result.Message = fmt.Sprintf("%d/%d planning branches completed", completed, len(s.stages))
	return result, nil
}

// Cleanup releases resources held by every child.
func (s *Stage) Cleanup(ctx context.Context) error {
	var errs []error
	for _, stage := range s.stages {
		if err := stage.Cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", stage.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// log writes a structured log message if a logger is available.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(ctx, level, msg, attrs...)
	}
}

// Verify interface compliance.
var _ core.Stage = (*Stage)(nil)
