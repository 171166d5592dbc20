// Package cache manages the local audio cache: fetch-on-demand through the
// track fetcher and byte-budgeted least-played eviction through the track
// repository. Tracks are never deleted by eviction; only their files and
// cache records go.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
)

// Stats describes the cache's current fill level.
type Stats struct {
	UsedBytes    int64
	LimitBytes   int64
	UsagePercent float64
	CachedTracks int
}

// Manager coordinates the audio cache directory, the fetcher that fills it,
// and the catalog rows that track what is cached.
type Manager struct {
	dir      string
	maxBytes int64
	tracks   repository.TrackRepository
	fetcher  provider.TrackFetcher
	logger   *slog.Logger
}

// NewManager creates a cache manager. The directory is created on first use
// by the fetcher; maxBytes of zero or less disables eviction.
func NewManager(dir string, maxBytes int64, tracks repository.TrackRepository, fetcher provider.TrackFetcher) *Manager {
	return &Manager{
		dir:      dir,
		maxBytes: maxBytes,
		tracks:   tracks,
		fetcher:  fetcher,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the manager.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

// EnsureCached returns the local audio path for a catalog track, downloading
// it when absent. A cache record pointing at a file that no longer exists is
// cleared and the track refetched; external deletion is tolerated, not fatal.
// The track's cache fields are updated in place on success.
func (m *Manager) EnsureCached(ctx context.Context, track *models.Track) (string, error) {
	if track == nil {
		return "", fmt.Errorf("track is nil")
	}

	if track.IsCached() {
		if _, err := os.Stat(*track.LocalPath); err == nil {
			return *track.LocalPath, nil
		}
		m.logger.Warn("cached file missing, refetching",
			slog.String("track", track.DisplayName()),
			slog.String("path", *track.LocalPath))
		if err := m.tracks.ClearCached(ctx, track.ID); err != nil {
			return "", fmt.Errorf("clearing stale cache record: %w", err)
		}
		track.ClearCached()
	}

	res, err := m.fetcher.Download(ctx, track.Artist+" "+track.Title, track.Artist, track.Title)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", track.DisplayName(), err)
	}

	if err := m.tracks.SetCached(ctx, track.ID, res.Path, res.SizeBytes); err != nil {
		return "", fmt.Errorf("recording cached file: %w", err)
	}
	track.MarkCached(res.Path, res.SizeBytes)

	if track.DurationSec == 0 && res.DurationSec > 0 {
		track.DurationSec = res.DurationSec
		if err := m.tracks.Update(ctx, track); err != nil {
			m.logger.Warn("updating track duration",
				slog.String("track", track.DisplayName()),
				slog.Any("error", err))
		}
	}

	m.evictAfterFetch(ctx)
	return res.Path, nil
}

// Fetch downloads a track by free-text query and records it in the catalog,
// merging into an existing row when the (artist, title) pair is already
// known. Used by the seed importer, where credits come from the source's
// metadata rather than an existing catalog row.
func (m *Manager) Fetch(ctx context.Context, query, artist, title string) (*models.Track, error) {
	res, err := m.fetcher.Download(ctx, query, artist, title)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", query, err)
	}

	track := &models.Track{
		Title:       res.Title,
		Artist:      res.Artist,
		DurationSec: res.DurationSec,
		SourceURL:   res.SourceURL,
		ArtworkURL:  res.ThumbnailURL,
	}
	track.MarkCached(res.Path, res.SizeBytes)

	if err := m.tracks.Upsert(ctx, track); err != nil {
		return nil, fmt.Errorf("recording track: %w", err)
	}

	m.logger.Info("track cached",
		slog.String("track", track.DisplayName()),
		slog.Int64("size_bytes", res.SizeBytes))

	m.evictAfterFetch(ctx)
	return track, nil
}

// evictAfterFetch runs an eviction pass and logs rather than fails: the
// fetch already succeeded, and the cron sweep will retry the budget.
func (m *Manager) evictAfterFetch(ctx context.Context) {
	if _, _, err := m.EnforceBudget(ctx); err != nil {
		m.logger.Warn("cache eviction failed", slog.Any("error", err))
	}
}

// EnforceBudget evicts least-played tracks until the cached total fits the
// byte budget, unlinking their files. Returns how many tracks were evicted
// and how many bytes their records freed. A missing file is fine; the
// record clear is what matters.
func (m *Manager) EnforceBudget(ctx context.Context) (int, int64, error) {
	if m.maxBytes <= 0 {
		return 0, 0, nil
	}

	total, err := m.tracks.TotalCachedBytes(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sizing cache: %w", err)
	}
	if total <= m.maxBytes {
		return 0, 0, nil
	}

	m.logger.Info("cache over budget, evicting",
		slog.Int64("used_bytes", total),
		slog.Int64("limit_bytes", m.maxBytes))

	evicted, err := m.tracks.EvictTo(ctx, m.maxBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("evicting tracks: %w", err)
	}

	var freed int64
	for _, track := range evicted {
		freed += track.CachedBytes()
		if track.LocalPath == nil {
			continue
		}
		if err := os.Remove(*track.LocalPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("removing evicted file",
				slog.String("path", *track.LocalPath),
				slog.Any("error", err))
		}
	}

	m.logger.Info("cache eviction complete",
		slog.Int("evicted", len(evicted)),
		slog.Int64("freed_bytes", freed))
	return len(evicted), freed, nil
}

// Stats reports the cache fill level for health and stats snapshots.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	total, err := m.tracks.TotalCachedBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("sizing cache: %w", err)
	}

	cached, err := m.tracks.CachedCandidates(ctx, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("counting cached tracks: %w", err)
	}

	s := &Stats{
		UsedBytes:    total,
		LimitBytes:   m.maxBytes,
		CachedTracks: len(cached),
	}
	if m.maxBytes > 0 {
		s.UsagePercent = float64(total) / float64(m.maxBytes) * 100
	}
	return s, nil
}
