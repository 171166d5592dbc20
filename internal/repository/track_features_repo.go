package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// trackFeaturesRepo implements TrackFeaturesRepository using GORM.
type trackFeaturesRepo struct {
	db *gorm.DB
}

// NewTrackFeaturesRepository creates a new TrackFeaturesRepository.
func NewTrackFeaturesRepository(db *gorm.DB) *trackFeaturesRepo {
	return &trackFeaturesRepo{db: db}
}

// Get retrieves features for a track.
func (r *trackFeaturesRepo) Get(ctx context.Context, trackID models.UUID) (*models.TrackFeatures, error) {
	var features models.TrackFeatures
	if err := r.db.WithContext(ctx).Where("track_id = ?", trackID).First(&features).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting track features: %w", err)
	}
	return &features, nil
}

// Upsert creates or replaces features for a track.
func (r *trackFeaturesRepo) Upsert(ctx context.Context, features *models.TrackFeatures) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "track_id"}},
		UpdateAll: true,
	}).Create(features).Error
	if err != nil {
		return fmt.Errorf("upserting track features: %w", err)
	}
	return nil
}

// Ensure trackFeaturesRepo implements TrackFeaturesRepository at compile time.
var _ TrackFeaturesRepository = (*trackFeaturesRepo)(nil)
