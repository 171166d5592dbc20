package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
)

// playHistoryRepo implements PlayHistoryRepository using GORM.
type playHistoryRepo struct {
	db *gorm.DB
}

// NewPlayHistoryRepository creates a new PlayHistoryRepository.
func NewPlayHistoryRepository(db *gorm.DB) *playHistoryRepo {
	return &playHistoryRepo{db: db}
}

// Insert appends a play history entry.
func (r *playHistoryRepo) Insert(ctx context.Context, entry *models.PlayHistoryEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("inserting play history entry: %w", err)
	}
	return nil
}

// RecentBySession retrieves the latest entries for a session, newest first.
// The ID tiebreak keeps the order stable when timestamps collide.
func (r *playHistoryRepo) RecentBySession(ctx context.Context, sessionID models.UUID, limit int) ([]*models.PlayHistoryEntry, error) {
	var entries []*models.PlayHistoryEntry
	query := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("getting recent plays for session: %w", err)
	}
	return entries, nil
}

// RecentGlobal retrieves the latest entries across all sessions, newest first.
func (r *playHistoryRepo) RecentGlobal(ctx context.Context, limit int) ([]*models.PlayHistoryEntry, error) {
	var entries []*models.PlayHistoryEntry
	query := r.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("getting recent plays: %w", err)
	}
	return entries, nil
}

// RecentTracksBySession retrieves the tracks behind the latest entries for a
// session, newest play first. A track played twice appears twice; the result
// mirrors the play sequence, which is what prompt context wants.
func (r *playHistoryRepo) RecentTracksBySession(ctx context.Context, sessionID models.UUID, limit int) ([]*models.Track, error) {
	var tracks []*models.Track
	query := r.db.WithContext(ctx).
		Model(&models.Track{}).
		Joins("JOIN play_history ON play_history.track_id = tracks.id").
		Where("play_history.session_id = ?", sessionID).
		Order("play_history.started_at DESC, play_history.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("getting recent tracks for session: %w", err)
	}
	return tracks, nil
}

// CloseOpen stamps ended_at on any open entries for the session.
func (r *playHistoryRepo) CloseOpen(ctx context.Context, sessionID models.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.PlayHistoryEntry{}).
		Where("session_id = ? AND ended_at IS NULL", sessionID).
		Update("ended_at", models.Now()).Error
	if err != nil {
		return fmt.Errorf("closing open play history entries: %w", err)
	}
	return nil
}

// Ensure playHistoryRepo implements PlayHistoryRepository at compile time.
var _ PlayHistoryRepository = (*playHistoryRepo)(nil)
