package shared

import (
	"context"

	"github.com/jmylchreest/mixarr/internal/pipeline/core"
)

// BaseStage provides common functionality for graph stages.
// Embed this in stage implementations to get default behaviors.
type BaseStage struct {
	id    string
	name  string
	phase core.Phase
}

// NewBaseStage creates a new BaseStage.
func NewBaseStage(id, name string, phase core.Phase) BaseStage {
	return BaseStage{
		id:    id,
		name:  name,
		phase: phase,
	}
}

// ID returns the stage identifier.
func (b *BaseStage) ID() string {
	return b.id
}

// Name returns the human-readable stage name.
func (b *BaseStage) Name() string {
	return b.name
}

// Phase returns the lifecycle phase the stage runs under.
func (b *BaseStage) Phase() core.Phase {
	return b.phase
}

// Cleanup provides a default no-op cleanup implementation.
func (b *BaseStage) Cleanup(ctx context.Context) error {
	return nil
}

// NewResult creates a new StageResult.
func NewResult() *core.StageResult {
	return &core.StageResult{
		Artifacts: make([]core.Artifact, 0),
	}
}
