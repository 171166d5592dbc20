package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
)

// trackRepo implements TrackRepository using GORM.
type trackRepo struct {
	db *gorm.DB
}

// NewTrackRepository creates a new TrackRepository.
func NewTrackRepository(db *gorm.DB) *trackRepo {
	return &trackRepo{db: db}
}

// Create creates a new track.
func (r *trackRepo) Create(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("creating track: %w", err)
	}
	return nil
}

// GetByID retrieves a track by ID.
func (r *trackRepo) GetByID(ctx context.Context, id models.UUID) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting track by ID: %w", err)
	}
	return &track, nil
}

// GetByArtistTitle retrieves a track by its (artist, title) pair.
func (r *trackRepo) GetByArtistTitle(ctx context.Context, artist, title string) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).Where("artist = ? AND title = ?", artist, title).First(&track).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting track by artist/title: %w", err)
	}
	return &track, nil
}

// Upsert creates the track, or merges it into an existing row with the same
// (artist, title). The existing row's identity, playback counters and cache
// state win over the incoming values unless the incoming track carries fresher
// cache information.
func (r *trackRepo) Upsert(ctx context.Context, track *models.Track) error {
	existing, err := r.GetByArtistTitle(ctx, track.Artist, track.Title)
	if err != nil {
		return fmt.Errorf("upserting track: %w", err)
	}
	if existing == nil {
		return r.Create(ctx, track)
	}

	track.ID = existing.ID
	track.CreatedAt = existing.CreatedAt
	track.PlayCount = existing.PlayCount
	track.LastPlayedAt = existing.LastPlayedAt
	if track.LocalPath == nil {
		track.LocalPath = existing.LocalPath
		track.FilesizeBytes = existing.FilesizeBytes
	}
	if track.DurationSec == 0 {
		track.DurationSec = existing.DurationSec
	}
	return r.Update(ctx, track)
}

// Update updates an existing track.
func (r *trackRepo) Update(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Save(track).Error; err != nil {
		return fmt.Errorf("updating track: %w", err)
	}
	return nil
}

// CachedCandidates retrieves cached tracks eligible for selection, ordered by
// (play_count asc, last_played_at asc). Unplayed tracks sort first, which is
// what selection wants: prefer fresh material.
func (r *trackRepo) CachedCandidates(ctx context.Context, limit int, excludeIDs []models.UUID) ([]*models.Track, error) {
	query := r.db.WithContext(ctx).
		Where("local_path IS NOT NULL").
		Order("play_count ASC, last_played_at ASC")
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var tracks []*models.Track
	if err := query.Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("getting cached candidates: %w", err)
	}
	return tracks, nil
}

// IncrementPlayCount bumps play_count and stamps last_played_at.
func (r *trackRepo) IncrementPlayCount(ctx context.Context, id models.UUID) error {
	updates := map[string]interface{}{
		"play_count":     gorm.Expr("play_count + 1"),
		"last_played_at": models.Now(),
	}
	if err := r.db.WithContext(ctx).Model(&models.Track{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("incrementing play count: %w", err)
	}
	return nil
}

// SetCached records the cached file path and size for a track.
func (r *trackRepo) SetCached(ctx context.Context, id models.UUID, path string, sizeBytes int64) error {
	updates := map[string]interface{}{
		"local_path":     path,
		"filesize_bytes": sizeBytes,
	}
	if err := r.db.WithContext(ctx).Model(&models.Track{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("setting cache state: %w", err)
	}
	return nil
}

// ClearCached nulls the cached file record for a track. The metadata row
// itself is never deleted.
func (r *trackRepo) ClearCached(ctx context.Context, id models.UUID) error {
	updates := map[string]interface{}{
		"local_path":     nil,
		"filesize_bytes": nil,
	}
	if err := r.db.WithContext(ctx).Model(&models.Track{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("clearing cache state: %w", err)
	}
	return nil
}

// TotalCachedBytes sums filesize_bytes over cached tracks.
func (r *trackRepo) TotalCachedBytes(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Track{}).
		Select("COALESCE(SUM(filesize_bytes), 0)").
		Where("local_path IS NOT NULL").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing cached bytes: %w", err)
	}
	return total, nil
}

// EvictTo clears cache records in ascending (play_count, last_played_at)
// order, never-played first within a tier, until the cached total is at or
// below targetBytes. Runs in a transaction so a crash cannot leave the
// catalog claiming files that a partially-complete pass already forgot.
func (r *trackRepo) EvictTo(ctx context.Context, targetBytes int64) ([]*models.Track, error) {
	var evicted []*models.Track

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cached []*models.Track
		if err := tx.
			Where("local_path IS NOT NULL").
			Order("play_count ASC, last_played_at IS NOT NULL, last_played_at ASC").
			Find(&cached).Error; err != nil {
			return fmt.Errorf("listing cached tracks: %w", err)
		}

		var total int64
		for _, t := range cached {
			total += t.CachedBytes()
		}

		for _, t := range cached {
			if total <= targetBytes {
				break
			}
			updates := map[string]interface{}{
				"local_path":     nil,
				"filesize_bytes": nil,
			}
			if err := tx.Model(&models.Track{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("evicting track %s: %w", t.ID, err)
			}
			total -= t.CachedBytes()
			evicted = append(evicted, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("evicting to %d bytes: %w", targetBytes, err)
	}
	return evicted, nil
}

// Ensure trackRepo implements TrackRepository at compile time.
var _ TrackRepository = (*trackRepo)(nil)
