package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
)

// sessionRepo implements SessionRepository using GORM.
type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) *sessionRepo {
	return &sessionRepo{db: db}
}

// Create creates a new session.
func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID.
func (r *sessionRepo) GetByID(ctx context.Context, id models.UUID) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting session by ID: %w", err)
	}
	return &session, nil
}

// GetActive retrieves the most recent session without an end time.
func (r *sessionRepo) GetActive(ctx context.Context) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("ended_at IS NULL").Order("started_at DESC").First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting active session: %w", err)
	}
	return &session, nil
}

// End stamps ended_at on the session. Ending an already-ended session leaves
// the original timestamp untouched.
func (r *sessionRepo) End(ctx context.Context, id models.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", models.Now()).Error
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// Ensure sessionRepo implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepo)(nil)
