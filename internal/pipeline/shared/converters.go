// Package shared provides utilities shared between graph stages.
package shared

import (
	"time"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/provider"
)

// TrackBrief converts a track and whatever analysis is on file into the
// summary the planning prompts see. features and lyrics may be nil; Key and
// Mode then follow the features convention of -1 for unknown.
func TrackBrief(track *models.Track, features *models.TrackFeatures, lyrics *models.LyricsAnalysis) provider.TrackBrief {
	brief := provider.TrackBrief{
		ID:          track.ID.String(),
		Title:       track.Title,
		Artist:      track.Artist,
		DurationSec: track.DurationSec,
		Key:         -1,
		Mode:        -1,
	}

	if features != nil {
		brief.Tempo = features.Tempo
		brief.Energy = features.Energy
		brief.Key = features.Key
		brief.Mode = features.Mode
	}

	if lyrics != nil {
		brief.Themes = lyrics.Themes
		brief.Moods = lyrics.Moods
	}

	return brief
}

// Candidate converts a track into a selectable candidate for the track
// selection prompt. features and lyrics may be nil.
func Candidate(track *models.Track, features *models.TrackFeatures, lyrics *models.LyricsAnalysis) provider.CandidateTrack {
	c := provider.CandidateTrack{
		ID:          track.ID.String(),
		Title:       track.Title,
		Artist:      track.Artist,
		DurationSec: track.DurationSec,
		PlayCount:   track.PlayCount,
		Key:         -1,
		Mode:        -1,
	}

	if features != nil {
		c.Tempo = features.Tempo
		c.Energy = features.Energy
		c.Valence = features.Valence
		c.Danceability = features.Danceability
		c.Key = features.Key
		c.Mode = features.Mode
	}

	if lyrics != nil {
		c.Themes = lyrics.Themes
		c.Moods = lyrics.Moods
	}

	return c
}

// HistoryEntries converts recently played tracks, newest first, into
// prompt history rows.
func HistoryEntries(tracks []*models.Track) []provider.HistoryEntry {
	entries := make([]provider.HistoryEntry, 0, len(tracks))
	for _, t := range tracks {
		entry := provider.HistoryEntry{
			Title:  t.Title,
			Artist: t.Artist,
		}
		if t.LastPlayedAt != nil {
			entry.PlayedAt = t.LastPlayedAt.Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}
	return entries
}

// HistoryTrackIDs extracts the distinct track IDs from play history
// entries, preserving newest-first order.
func HistoryTrackIDs(entries []*models.PlayHistoryEntry) []models.UUID {
	seen := make(map[models.UUID]bool, len(entries))
	ids := make([]models.UUID, 0, len(entries))
	for _, e := range entries {
		if seen[e.TrackID] {
			continue
		}
		seen[e.TrackID] = true
		ids = append(ids, e.TrackID)
	}
	return ids
}

// RecentArtists extracts distinct artist names from recent tracks,
// preserving newest-first order.
func RecentArtists(tracks []*models.Track) []string {
	seen := make(map[string]bool, len(tracks))
	artists := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.Artist == "" || seen[t.Artist] {
			continue
		}
		seen[t.Artist] = true
		artists = append(artists, t.Artist)
	}
	return artists
}
