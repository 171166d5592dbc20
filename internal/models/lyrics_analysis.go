package models

// LyricsAnalysis holds the lyric-level analysis for a track, keyed by the
// track's UUID. List columns are stored as JSON text; score columns are
// normalized to [0, 1].
type LyricsAnalysis struct {
	// TrackID is the owning track's UUID.
	TrackID UUID `gorm:"primarykey;type:varchar(36)" json:"track_id"`

	// Themes are the dominant lyrical themes (love, loss, party, ...).
	Themes StringList `gorm:"type:text;serializer:json" json:"themes"`

	// Moods are the emotional registers the lyrics move through.
	Moods StringList `gorm:"type:text;serializer:json" json:"moods"`

	// Brands are commercial brand names mentioned in the lyrics.
	Brands StringList `gorm:"type:text;serializer:json" json:"brands"`

	// Locations are geographic places mentioned in the lyrics.
	Locations StringList `gorm:"type:text;serializer:json" json:"locations"`

	// CulturalRefPeople are referenced real people.
	CulturalRefPeople StringList `gorm:"type:text;serializer:json" json:"cultural_ref_people"`

	// CulturalRefNonPeople are referenced works, events and other non-person culture.
	CulturalRefNonPeople StringList `gorm:"type:text;serializer:json" json:"cultural_ref_non_people"`

	// NarrativeStyle describes the lyrical voice (first-person, storytelling, ...).
	NarrativeStyle string `gorm:"size:128" json:"narrative_style,omitempty"`

	EmotionalIntensityScore float64 `json:"emotional_intensity_score"`
	ImageryScore            float64 `json:"imagery_score"`
	ComplexityScore         float64 `json:"complexity_score"`
	RhymeSchemeScore        float64 `json:"rhyme_scheme_score"`
	RepetitivenessScore     float64 `json:"repetitiveness_score"`
}

// TableName returns the table name for LyricsAnalysis.
func (LyricsAnalysis) TableName() string {
	return "lyrics_analyses"
}
