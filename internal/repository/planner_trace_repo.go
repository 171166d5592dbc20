package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
)

// plannerTraceRepo implements PlannerTraceRepository using GORM.
type plannerTraceRepo struct {
	db *gorm.DB
}

// NewPlannerTraceRepository creates a new PlannerTraceRepository.
func NewPlannerTraceRepository(db *gorm.DB) *plannerTraceRepo {
	return &plannerTraceRepo{db: db}
}

// Insert appends a planner trace row.
func (r *plannerTraceRepo) Insert(ctx context.Context, trace *models.PlannerTrace) error {
	if err := r.db.WithContext(ctx).Create(trace).Error; err != nil {
		return fmt.Errorf("inserting planner trace: %w", err)
	}
	return nil
}

// ListBySession retrieves a session's traces in insertion order.
func (r *plannerTraceRepo) ListBySession(ctx context.Context, sessionID models.UUID) ([]*models.PlannerTrace, error) {
	var traces []*models.PlannerTrace
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&traces).Error
	if err != nil {
		return nil, fmt.Errorf("listing planner traces for session: %w", err)
	}
	return traces, nil
}

// Ensure plannerTraceRepo implements PlannerTraceRepository at compile time.
var _ PlannerTraceRepository = (*plannerTraceRepo)(nil)
