package models

import (
	"gorm.io/gorm"
)

// PlayHistoryEntry records one track play within a session. The table is
// append-only; insertion order within a session equals segment production
// order, which selection logic relies on for its recency windows.
type PlayHistoryEntry struct {
	// ID is an auto-increment key; ordering by it matches insertion order.
	ID int64 `gorm:"primarykey;autoIncrement" json:"id"`

	// SessionID is the owning session.
	SessionID UUID `gorm:"not null;type:varchar(36);index" json:"session_id"`

	// TrackID is the track that played.
	TrackID UUID `gorm:"not null;type:varchar(36);index" json:"track_id"`

	// StartedAt is when the track entered the mix.
	StartedAt Time `gorm:"not null;index" json:"started_at"`

	// EndedAt is when the track left the mix; nil while it is still the
	// freshest entry.
	EndedAt *Time `json:"ended_at,omitempty"`

	// Skipped marks tracks that were cut short.
	Skipped bool `gorm:"default:false" json:"skipped"`

	// TransitionKind is the transition that brought this track in.
	TransitionKind TransitionKind `gorm:"size:20" json:"transition_kind,omitempty"`
}

// TableName returns the table name for PlayHistoryEntry.
func (PlayHistoryEntry) TableName() string {
	return "play_history"
}

// Validate performs basic validation on the entry.
func (p *PlayHistoryEntry) Validate() error {
	if p.SessionID.IsZero() {
		return ErrSessionIDRequired
	}
	if p.TrackID.IsZero() {
		return ErrTrackIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the entry and defaults StartedAt.
func (p *PlayHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if p.StartedAt.IsZero() {
		p.StartedAt = Now()
	}
	return p.Validate()
}
