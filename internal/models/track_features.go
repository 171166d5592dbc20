package models

// TrackFeatures holds the audio analysis features for a track, keyed by the
// track's UUID. All perceptual scores are normalized to [0, 1]; Tempo is BPM;
// Loudness is integrated LUFS as reported by the provider.
type TrackFeatures struct {
	// TrackID is the owning track's UUID.
	TrackID UUID `gorm:"primarykey;type:varchar(36)" json:"track_id"`

	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`

	// Key is the pitch class (0 = C, 1 = C#/Db, ...); -1 when unknown.
	Key int `gorm:"default:-1" json:"key"`

	// Mode is 1 for major, 0 for minor, -1 when unknown.
	Mode int `gorm:"default:-1" json:"mode"`

	Liveness    float64 `json:"liveness"`
	Loudness    float64 `json:"loudness"`
	Speechiness float64 `json:"speechiness"`
	Tempo       float64 `json:"tempo"`

	// TimeSignature is beats per bar; 4 for common time.
	TimeSignature int `gorm:"default:4" json:"time_signature"`

	Valence float64 `json:"valence"`
}

// TableName returns the table name for TrackFeatures.
func (TrackFeatures) TableName() string {
	return "track_features"
}

// HasTempo returns true if the provider reported a usable tempo.
func (f *TrackFeatures) HasTempo() bool {
	return f.Tempo > 0
}
