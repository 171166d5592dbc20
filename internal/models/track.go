package models

import (
	"gorm.io/gorm"
)

// Track represents a known piece of music in the catalog. A track exists
// independently of whether its audio is currently cached on disk: metadata is
// kept forever, while the cached file can come and go under eviction.
type Track struct {
	BaseModel

	// Title is the track title as reported by the metadata provider.
	Title string `gorm:"not null;size:512" json:"title"`

	// Artist is the primary credited artist.
	Artist string `gorm:"not null;size:512;index" json:"artist"`

	// ReleaseDate is the release date as free-form text (providers disagree
	// on precision, so this is not a time.Time).
	ReleaseDate string `gorm:"size:64" json:"release_date,omitempty"`

	// LanguageCode is the ISO 639-1 language of the lyrics, if known.
	LanguageCode string `gorm:"size:8" json:"language_code,omitempty"`

	// Explicit marks tracks flagged as explicit by the provider.
	Explicit bool `gorm:"default:false" json:"explicit"`

	// LocalPath is the absolute path of the cached audio file. Nil means the
	// track is not cached. Eviction nulls this together with FilesizeBytes.
	LocalPath *string `gorm:"size:1024" json:"local_path,omitempty"`

	// DurationSec is the probed audio duration in seconds.
	DurationSec float64 `gorm:"not null;default:0" json:"duration_sec"`

	// FilesizeBytes is the exact byte size of the cached file. Nil when the
	// track is not cached.
	FilesizeBytes *int64 `json:"filesize_bytes,omitempty"`

	// PlayCount is the number of times this track has been mixed into a session.
	PlayCount int `gorm:"not null;default:0;index" json:"play_count"`

	// LastPlayedAt is the timestamp of the most recent play, if any.
	LastPlayedAt *Time `gorm:"index" json:"last_played_at,omitempty"`

	// SourceURL is the URL the audio was fetched from, if fetched.
	SourceURL string `gorm:"size:2048" json:"source_url,omitempty"`

	// ArtworkURL is the cover art URL reported by the metadata provider.
	ArtworkURL string `gorm:"size:2048" json:"artwork_url,omitempty"`
}

// TableName returns the table name for Track.
func (Track) TableName() string {
	return "tracks"
}

// IsCached returns true if the track has a cached audio file on record.
func (t *Track) IsCached() bool {
	return t.LocalPath != nil && *t.LocalPath != ""
}

// MarkCached records the cached file location and size.
func (t *Track) MarkCached(path string, sizeBytes int64) {
	t.LocalPath = &path
	t.FilesizeBytes = &sizeBytes
}

// ClearCached removes the cached file record. The metadata row survives;
// only the audio presence is forgotten.
func (t *Track) ClearCached() {
	t.LocalPath = nil
	t.FilesizeBytes = nil
}

// CachedBytes returns the recorded file size, or 0 when not cached.
func (t *Track) CachedBytes() int64 {
	if t.FilesizeBytes == nil {
		return 0
	}
	return *t.FilesizeBytes
}

// DisplayName returns "Artist - Title" for logs and events.
func (t *Track) DisplayName() string {
	return t.Artist + " - " + t.Title
}

// Validate performs basic validation on the track.
func (t *Track) Validate() error {
	if t.Title == "" {
		return ErrTitleRequired
	}
	if t.Artist == "" {
		return ErrArtistRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the track and generates a UUID.
func (t *Track) BeforeCreate(tx *gorm.DB) error {
	if err := t.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return t.Validate()
}

// BeforeUpdate is a GORM hook that validates the track before update.
func (t *Track) BeforeUpdate(tx *gorm.DB) error {
	return t.Validate()
}
