// Package repository defines data access interfaces for mixarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/jmylchreest/mixarr/internal/models"
)

// TrackRepository defines operations for track persistence.
type TrackRepository interface {
	// Create creates a new track.
	Create(ctx context.Context, track *models.Track) error
	// GetByID retrieves a track by ID.
	GetByID(ctx context.Context, id models.UUID) (*models.Track, error)
	// GetByArtistTitle retrieves a track by its (artist, title) pair.
	GetByArtistTitle(ctx context.Context, artist, title string) (*models.Track, error)
	// Upsert creates the track, or merges it into an existing row with the
	// same (artist, title) while preserving playback and cache state.
	Upsert(ctx context.Context, track *models.Track) error
	// Update updates an existing track.
	Update(ctx context.Context, track *models.Track) error
	// CachedCandidates retrieves cached tracks eligible for selection,
	// ordered by (play_count asc, last_played_at asc), excluding the given IDs.
	CachedCandidates(ctx context.Context, limit int, excludeIDs []models.UUID) ([]*models.Track, error)
	// IncrementPlayCount bumps play_count and stamps last_played_at.
	IncrementPlayCount(ctx context.Context, id models.UUID) error
	// SetCached records the cached file path and size for a track.
	SetCached(ctx context.Context, id models.UUID, path string, sizeBytes int64) error
	// ClearCached nulls the cached file record for a track.
	ClearCached(ctx context.Context, id models.UUID) error
	// TotalCachedBytes sums filesize_bytes over cached tracks.
	TotalCachedBytes(ctx context.Context) (int64, error)
	// EvictTo clears cache records in ascending (play_count, last_played_at)
	// order, never-played first within a tier, until the cached total is at
	// or below targetBytes. Returns the evicted tracks with their former paths.
	EvictTo(ctx context.Context, targetBytes int64) ([]*models.Track, error)
}

// TrackFeaturesRepository defines operations for audio feature persistence.
type TrackFeaturesRepository interface {
	// Get retrieves features for a track.
	Get(ctx context.Context, trackID models.UUID) (*models.TrackFeatures, error)
	// Upsert creates or replaces features for a track.
	Upsert(ctx context.Context, features *models.TrackFeatures) error
}

// LyricsAnalysisRepository defines operations for lyrics analysis persistence.
type LyricsAnalysisRepository interface {
	// Get retrieves the lyrics analysis for a track.
	Get(ctx context.Context, trackID models.UUID) (*models.LyricsAnalysis, error)
	// Upsert creates or replaces the lyrics analysis for a track.
	Upsert(ctx context.Context, analysis *models.LyricsAnalysis) error
}

// SessionRepository defines operations for session persistence.
type SessionRepository interface {
	// Create creates a new session.
	Create(ctx context.Context, session *models.Session) error
	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id models.UUID) (*models.Session, error)
	// GetActive retrieves the most recent session without an end time.
	GetActive(ctx context.Context) (*models.Session, error)
	// End stamps ended_at on the session.
	End(ctx context.Context, id models.UUID) error
}

// PlayHistoryRepository defines operations for play history persistence.
type PlayHistoryRepository interface {
	// Insert appends a play history entry.
	Insert(ctx context.Context, entry *models.PlayHistoryEntry) error
	// RecentBySession retrieves the latest entries for a session, newest first.
	RecentBySession(ctx context.Context, sessionID models.UUID, limit int) ([]*models.PlayHistoryEntry, error)
	// RecentGlobal retrieves the latest entries across all sessions, newest first.
	RecentGlobal(ctx context.Context, limit int) ([]*models.PlayHistoryEntry, error)
	// RecentTracksBySession retrieves the tracks behind the latest entries for
	// a session, newest play first. Used for prompt context.
	RecentTracksBySession(ctx context.Context, sessionID models.UUID, limit int) ([]*models.Track, error)
	// CloseOpen stamps ended_at on any open entries for the session.
	CloseOpen(ctx context.Context, sessionID models.UUID) error
}

// SegmentRepository defines operations for rendered segment persistence.
type SegmentRepository interface {
	// InsertWithPlayback records a rendered segment and its playback
	// bookkeeping in one transaction: any open play history entry for the
	// session is closed, the segment row and the fresh history entry are
	// inserted, and the played track's play_count and last_played_at are
	// bumped. Either all of it lands or none of it does.
	InsertWithPlayback(ctx context.Context, segment *models.Segment, entry *models.PlayHistoryEntry) error
	// Insert appends a segment row; the auto-increment ID is filled in.
	Insert(ctx context.Context, segment *models.Segment) error
	// ListBySession retrieves a session's segments ordered by segment_index.
	ListBySession(ctx context.Context, sessionID models.UUID) ([]*models.Segment, error)
	// SetArchivePath records the archive copy location for a segment.
	SetArchivePath(ctx context.Context, id int64, archivePath string) error
}

// PlannerTraceRepository defines operations for planner trace persistence.
// Trace writes are diagnostics; callers log and continue on failure.
type PlannerTraceRepository interface {
	// Insert appends a planner trace row.
	Insert(ctx context.Context, trace *models.PlannerTrace) error
	// ListBySession retrieves a session's traces in insertion order.
	ListBySession(ctx context.Context, sessionID models.UUID) ([]*models.PlannerTrace, error)
}
