package models

import (
	"gorm.io/gorm"
)

// SessionMode describes how a listening session is driven.
type SessionMode string

const (
	// SessionModeContinuous is the autonomous always-on mix.
	SessionModeContinuous SessionMode = "continuous"
	// SessionModeOneShot renders a fixed number of segments and stops.
	SessionModeOneShot SessionMode = "one_shot"
)

// Session represents one continuous listening session. Exactly one session is
// active per scheduler instance; all play history and segments hang off it.
type Session struct {
	// ID is the session UUID.
	ID UUID `gorm:"primarykey;type:varchar(36)" json:"id"`

	// StartedAt is when the session began.
	StartedAt Time `gorm:"not null;index" json:"started_at"`

	// EndedAt is when the session ended; nil while active.
	EndedAt *Time `json:"ended_at,omitempty"`

	// Mode is the session mode.
	Mode SessionMode `gorm:"not null;default:'continuous';size:20" json:"mode"`

	// UserContextSnapshot is the raw user context text captured at session
	// start, so later analysis sees exactly what the planner saw.
	UserContextSnapshot string `gorm:"type:text" json:"user_context_snapshot,omitempty"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// IsActive returns true while the session has not ended.
func (s *Session) IsActive() bool {
	return s.EndedAt == nil
}

// End marks the session as ended now. Calling End twice is a no-op.
func (s *Session) End() {
	if s.EndedAt != nil {
		return
	}
	now := Now()
	s.EndedAt = &now
}

// Validate performs basic validation on the session.
func (s *Session) Validate() error {
	if s.Mode == "" {
		return ErrSessionModeRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that fills in the UUID and start time.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID.IsZero() {
		s.ID = NewUUID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = Now()
	}
	return s.Validate()
}
