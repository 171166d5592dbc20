package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lyricsAnalysisRepo implements LyricsAnalysisRepository using GORM.
type lyricsAnalysisRepo struct {
	db *gorm.DB
}

// NewLyricsAnalysisRepository creates a new LyricsAnalysisRepository.
func NewLyricsAnalysisRepository(db *gorm.DB) *lyricsAnalysisRepo {
	return &lyricsAnalysisRepo{db: db}
}

// Get retrieves the lyrics analysis for a track.
func (r *lyricsAnalysisRepo) Get(ctx context.Context, trackID models.UUID) (*models.LyricsAnalysis, error) {
	var analysis models.LyricsAnalysis
	if err := r.db.WithContext(ctx).Where("track_id = ?", trackID).First(&analysis).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting lyrics analysis: %w", err)
	}
	return &analysis, nil
}

// Upsert creates or replaces the lyrics analysis for a track.
func (r *lyricsAnalysisRepo) Upsert(ctx context.Context, analysis *models.LyricsAnalysis) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "track_id"}},
		UpdateAll: true,
	}).Create(analysis).Error
	if err != nil {
		return fmt.Errorf("upserting lyrics analysis: %w", err)
	}
	return nil
}

// Ensure lyricsAnalysisRepo implements LyricsAnalysisRepository at compile time.
var _ LyricsAnalysisRepository = (*lyricsAnalysisRepo)(nil)
