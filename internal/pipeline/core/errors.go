package core

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an invocation failed. The scheduler keys its
// backoff and retry behavior on the kind rather than the error text.
type FailureKind string

const (
	// FailureNone is the zero kind: the invocation succeeded, or stopped
	// for a reason outside the failure taxonomy (e.g. shutdown).
	FailureNone FailureKind = ""

	// FailureNoCandidate means selection produced no playable track.
	FailureNoCandidate FailureKind = "NO_CANDIDATE"

	// FailureFetch means the selected track's audio could not be obtained.
	FailureFetch FailureKind = "FETCH_FAILED"

	// FailureRender means the render did not produce a usable file.
	FailureRender FailureKind = "RENDER_FAILED"

	// FailurePersist means the segment could not be recorded or handed off.
	FailurePersist FailureKind = "PERSIST_FAILED"
)

// Graph errors. Stages wrap their fatal errors in one of the failure
// sentinels so the orchestrator can classify the invocation.
var (
	// ErrNoCandidate indicates selection found no playable track.
	ErrNoCandidate = errors.New("no playable candidate")

	// ErrFetchFailed indicates the selected track's audio could not be
	// downloaded or located in the cache.
	ErrFetchFailed = errors.New("track fetch failed")

	// ErrRenderFailed indicates the render produced no usable output.
	ErrRenderFailed = errors.New("segment render failed")

	// ErrPersistFailed indicates the segment row could not be written or
	// the segment could not be handed to the queue.
	ErrPersistFailed = errors.New("segment persist failed")

	// ErrGraphAlreadyRunning indicates an invocation is already executing
	// for this session.
	ErrGraphAlreadyRunning = errors.New("planning graph already running for this session")

	// ErrStageNotFound indicates a requested stage was not found.
	ErrStageNotFound = errors.New("stage not found")

	// ErrInvalidConfiguration indicates invalid graph configuration.
	ErrInvalidConfiguration = errors.New("invalid graph configuration")
)

// ClassifyFailure maps an error to its failure kind by unwrapping to the
// failure sentinels. Errors outside the taxonomy, including context
// cancellation, classify as FailureNone.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNoCandidate):
		return FailureNoCandidate
	case errors.Is(err, ErrFetchFailed):
		return FailureFetch
	case errors.Is(err, ErrRenderFailed):
		return FailureRender
	case errors.Is(err, ErrPersistFailed):
		return FailurePersist
	default:
		return FailureNone
	}
}

// StageError wraps an error with stage context.
type StageError struct {
	StageID   string
	StageName string
	Err       error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (%s): %v", e.StageName, e.StageID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stageID, stageName string, err error) *StageError {
	return &StageError{
		StageID:   stageID,
		StageName: stageName,
		Err:       err,
	}
}

// ConfigurationError represents a configuration problem.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}
