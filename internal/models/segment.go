package models

import (
	"gorm.io/gorm"
)

// Segment records one rendered audio segment. Segment n covers the tail of
// its A-track, the transition, and the bulk of its B-track; TrackID is the
// B-track, so the chain of segments doubles as the chain of tracks.
type Segment struct {
	// ID is an auto-increment key.
	ID int64 `gorm:"primarykey;autoIncrement" json:"id"`

	// SessionID is the owning session.
	SessionID UUID `gorm:"not null;type:varchar(36);index;uniqueIndex:idx_segments_session_segment" json:"session_id"`

	// SegmentIndex is the position within the session, starting at 0 for the
	// bootstrap segment. Strictly monotonic per session; the composite unique
	// index makes double-production of an index a hard error.
	SegmentIndex int `gorm:"not null;uniqueIndex:idx_segments_session_segment" json:"segment_index"`

	// TrackID is the incoming (B) track of this segment's transition.
	TrackID UUID `gorm:"not null;type:varchar(36);index" json:"track_id"`

	// FilePath is where the rendered audio lives.
	FilePath string `gorm:"not null;size:1024" json:"file_path"`

	// FilePathArchive is the archive copy location, when archiving is enabled.
	FilePathArchive string `gorm:"size:1024" json:"file_path_archive,omitempty"`

	// DurationSec is the probed duration of the rendered file in seconds.
	DurationSec float64 `gorm:"not null" json:"duration_sec"`

	// TransitionKind is the transition style used.
	TransitionKind TransitionKind `gorm:"not null;size:20" json:"transition_kind"`

	// UsedVoice is true when a synthesized voice line made it into the mix.
	UsedVoice bool `gorm:"default:false" json:"used_voice"`

	// CreatedAt is when the segment row was inserted.
	CreatedAt Time `json:"created_at"`
}

// TableName returns the table name for Segment.
func (Segment) TableName() string {
	return "segments"
}

// Validate performs basic validation on the segment.
func (s *Segment) Validate() error {
	if s.SessionID.IsZero() {
		return ErrSessionIDRequired
	}
	if s.TrackID.IsZero() {
		return ErrTrackIDRequired
	}
	if s.FilePath == "" {
		return ErrFilePathRequired
	}
	if s.SegmentIndex < 0 {
		return ErrInvalidSegmentIndex
	}
	if s.DurationSec <= 0 {
		return ErrInvalidDuration
	}
	if !s.TransitionKind.IsValid() {
		return ErrInvalidTransitionKind
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the segment.
func (s *Segment) BeforeCreate(tx *gorm.DB) error {
	return s.Validate()
}
