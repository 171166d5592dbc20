package shared

import (
	"context"
	"fmt"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
)

// EnsureTrackRow resolves a catalog hit to a catalog row, creating the row
// when the track is new. The catalog and the database share track IDs, so
// the hit's ID becomes the row's primary key on first contact.
func EnsureTrackRow(ctx context.Context, repo repository.TrackRepository, id models.UUID, hit provider.SongHit) (*models.Track, error) {
	track, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up track %s: %w", id, err)
	}
	if track != nil {
		return track, nil
	}

	track = &models.Track{
		Title:       hit.Title,
		Artist:      hit.Artist,
		ReleaseDate: hit.ReleaseDate,
	}
	track.ID = id
	if err := repo.Upsert(ctx, track); err != nil {
		return nil, fmt.Errorf("creating track %s: %w", id, err)
	}
	return track, nil
}
