package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ArtifactType identifies the type of content in an artifact.
type ArtifactType string

const (
	// ArtifactTypeAudio represents a rendered audio segment.
	ArtifactTypeAudio ArtifactType = "audio"

	// ArtifactTypeSidecar represents a segment's timing sidecar.
	ArtifactTypeSidecar ArtifactType = "sidecar"

	// ArtifactTypeVoice represents a synthesized voice clip.
	ArtifactTypeVoice ArtifactType = "voice"

	// ArtifactTypeArtwork represents cached cover art.
	ArtifactTypeArtwork ArtifactType = "artwork"
)

// Artifact represents a file produced by a graph stage.
type Artifact struct {
	// ID is a unique identifier for this artifact.
	ID string

	// Type identifies the content type.
	Type ArtifactType

	// FilePath is the path to the artifact file.
	FilePath string

	// CreatedBy is the stage ID that created this artifact.
	CreatedBy string

	// FileSize is the size in bytes, when known.
	FileSize int64

	// DurationSec is the audio duration in seconds, when known.
	DurationSec float64

	// CreatedAt is when the artifact was created.
	CreatedAt time.Time

	// Metadata contains additional artifact-specific data.
	Metadata map[string]any
}

// NewArtifact creates a new artifact with the given type.
func NewArtifact(artifactType ArtifactType, createdBy string) Artifact {
	return Artifact{
		ID:        ulid.Make().String(),
		Type:      artifactType,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithFilePath sets the file path for the artifact.
func (a Artifact) WithFilePath(path string) Artifact {
	a.FilePath = path
	return a
}

// WithFileSize sets the file size for the artifact.
func (a Artifact) WithFileSize(size int64) Artifact {
	a.FileSize = size
	return a
}

// WithDuration sets the audio duration for the artifact.
func (a Artifact) WithDuration(seconds float64) Artifact {
	a.DurationSec = seconds
	return a
}

// WithMetadata adds metadata to the artifact.
func (a Artifact) WithMetadata(key string, value any) Artifact {
	a.Metadata[key] = value
	return a
}
