package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	session := &Session{Mode: SessionModeContinuous}
	require.NoError(t, session.BeforeCreate(nil))

	assert.False(t, session.ID.IsZero())
	assert.False(t, session.StartedAt.IsZero())
	assert.True(t, session.IsActive())

	session.End()
	require.NotNil(t, session.EndedAt)
	assert.False(t, session.IsActive())

	// Ending twice must not move the timestamp
	first := *session.EndedAt
	session.End()
	assert.Equal(t, first, *session.EndedAt)
}

func TestSession_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Session{}).Validate(), ErrSessionModeRequired)
	assert.NoError(t, (&Session{Mode: SessionModeOneShot}).Validate())
}

func TestSegment_Validate(t *testing.T) {
	valid := Segment{
		SessionID:      NewUUID(),
		SegmentIndex:   3,
		TrackID:        NewUUID(),
		FilePath:       "/var/lib/mixarr/segments/mix_0a1b2c3d.mp3",
		DurationSec:    184.5,
		TransitionKind: TransitionBassSwap,
	}

	tests := []struct {
		name    string
		mutate  func(*Segment)
		wantErr error
	}{
		{"valid", func(*Segment) {}, nil},
		{"missing session", func(s *Segment) { s.SessionID = UUID{} }, ErrSessionIDRequired},
		{"missing track", func(s *Segment) { s.TrackID = UUID{} }, ErrTrackIDRequired},
		{"missing file path", func(s *Segment) { s.FilePath = "" }, ErrFilePathRequired},
		{"negative index", func(s *Segment) { s.SegmentIndex = -1 }, ErrInvalidSegmentIndex},
		{"zero duration", func(s *Segment) { s.DurationSec = 0 }, ErrInvalidDuration},
		{"unknown transition", func(s *Segment) { s.TransitionKind = "swoosh" }, ErrInvalidTransitionKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segment := valid
			tt.mutate(&segment)
			err := segment.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlayHistoryEntry_Validate(t *testing.T) {
	entry := &PlayHistoryEntry{SessionID: NewUUID(), TrackID: NewUUID()}
	require.NoError(t, entry.BeforeCreate(nil))
	assert.False(t, entry.StartedAt.IsZero(), "BeforeCreate should default StartedAt")

	assert.ErrorIs(t, (&PlayHistoryEntry{TrackID: NewUUID()}).Validate(), ErrSessionIDRequired)
	assert.ErrorIs(t, (&PlayHistoryEntry{SessionID: NewUUID()}).Validate(), ErrTrackIDRequired)
}
