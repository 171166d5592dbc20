package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrTitleRequired indicates a required title field is empty.
	ErrTitleRequired = errors.New("title is required")

	// ErrArtistRequired indicates a required artist field is empty.
	ErrArtistRequired = errors.New("artist is required")

	// ErrTrackIDRequired indicates a required track ID field is zero.
	ErrTrackIDRequired = errors.New("track_id is required")

	// ErrSessionIDRequired indicates a required session ID field is zero.
	ErrSessionIDRequired = errors.New("session_id is required")

	// ErrFilePathRequired indicates a required file path field is empty.
	ErrFilePathRequired = errors.New("file_path is required")

	// ErrInvalidDuration indicates a non-positive duration.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrInvalidTransitionKind indicates an unknown transition kind.
	ErrInvalidTransitionKind = errors.New("invalid transition kind")

	// ErrInvalidSegmentIndex indicates a negative segment index.
	ErrInvalidSegmentIndex = errors.New("segment_index must be non-negative")

	// ErrSessionModeRequired indicates a required session mode field is empty.
	ErrSessionModeRequired = errors.New("session mode is required")
)
