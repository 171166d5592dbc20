package shared

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
)

// RecordTrace persists one planner exchange for later analysis. Trace rows
// are diagnostics: failures are logged and swallowed so planning never
// fails on them. Exchanges that never reached the LLM (fallback paths)
// carry neither prompt nor response and are skipped.
func RecordTrace(ctx context.Context, repo repository.PlannerTraceRepository, logger *slog.Logger, sessionID models.UUID, ex provider.Exchange) {
	if repo == nil {
		return
	}
	if ex.Prompt == "" && ex.Response == "" {
		return
	}

	trace := &models.PlannerTrace{
		SessionID:       sessionID,
		Stage:           ex.Stage,
		Prompt:          ex.Prompt,
		Response:        ex.Response,
		Model:           ex.Model,
		ReasoningBudget: ex.Budget,
	}

	if err := repo.Insert(ctx, trace); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to store planner trace",
			slog.String("trace_stage", ex.Stage),
			slog.String("error", err.Error()),
		)
	}
}
