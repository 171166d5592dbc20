package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
)

// segmentRepo implements SegmentRepository using GORM.
type segmentRepo struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db *gorm.DB) *segmentRepo {
	return &segmentRepo{db: db}
}

// Insert appends a segment row; GORM fills in the auto-increment ID.
func (r *segmentRepo) Insert(ctx context.Context, segment *models.Segment) error {
	if err := r.db.WithContext(ctx).Create(segment).Error; err != nil {
		return fmt.Errorf("inserting segment: %w", err)
	}
	return nil
}

// InsertWithPlayback records a segment together with its playback
// bookkeeping in one transaction, so a failure on any write leaves the
// catalog without a half-recorded playback: no segment row without its
// history entry, no play-count bump without either.
func (r *segmentRepo) InsertWithPlayback(ctx context.Context, segment *models.Segment, entry *models.PlayHistoryEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PlayHistoryEntry{}).
			Where("session_id = ? AND ended_at IS NULL", entry.SessionID).
			Update("ended_at", models.Now()).Error; err != nil {
			return fmt.Errorf("closing open play history entries: %w", err)
		}
		if err := tx.Create(segment).Error; err != nil {
			return fmt.Errorf("inserting segment: %w", err)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("inserting play history: %w", err)
		}
		updates := map[string]interface{}{
			"play_count":     gorm.Expr("play_count + 1"),
			"last_played_at": models.Now(),
		}
		if err := tx.Model(&models.Track{}).Where("id = ?", segment.TrackID).Updates(updates).Error; err != nil {
			return fmt.Errorf("incrementing play count: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting segment playback: %w", err)
	}
	return nil
}

// ListBySession retrieves a session's segments ordered by segment_index.
func (r *segmentRepo) ListBySession(ctx context.Context, sessionID models.UUID) ([]*models.Segment, error) {
	var segments []*models.Segment
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("segment_index ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("listing segments for session: %w", err)
	}
	return segments, nil
}

// SetArchivePath records the archive copy location for a segment.
func (r *segmentRepo) SetArchivePath(ctx context.Context, id int64, archivePath string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Segment{}).
		Where("id = ?", id).
		Update("file_path_archive", archivePath).Error
	if err != nil {
		return fmt.Errorf("setting segment archive path: %w", err)
	}
	return nil
}

// Ensure segmentRepo implements SegmentRepository at compile time.
var _ SegmentRepository = (*segmentRepo)(nil)
