package core

import (
	"errors"
	"fmt"
)

// FailureKind is the stable classification of a pipeline failure. The HTTP
// layer maps kinds to status codes; the kind string appears verbatim in error
// responses.
type FailureKind string

// Failure kinds.
const (
	FailureValidation        FailureKind = "ValidationError"
	FailureVoiceNotFound     FailureKind = "VoiceNotFound"
	FailureEngineUnavailable FailureKind = "EngineUnavailable"
	FailureEngineTimeout     FailureKind = "EngineTimeout"
	FailureEngineRejected    FailureKind = "EngineRejected"
	FailureSynthesis         FailureKind = "SynthesisFailed"
	FailurePersistence       FailureKind = "PersistenceFailed"
)

// Sentinel errors for the engine adapters.
var (
	// ErrEngineUnavailable indicates the engine could not be reached or crashed.
	ErrEngineUnavailable = errors.New("engine unavailable")
	// ErrEngineTimeout indicates the engine did not answer within its deadline.
	ErrEngineTimeout = errors.New("engine timed out")
	// ErrEngineRejected indicates the engine judged the input invalid.
	ErrEngineRejected = errors.New("engine rejected input")
)

// Sentinel errors for registry and storage.
var (
	// ErrVoiceNotFound indicates an unknown voice id.
	ErrVoiceNotFound = errors.New("voice not found")
	// ErrArtifactNotFound indicates an unknown artifact id.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// PipelineError tags a lower-layer error with the failure kind and the
// pipeline stage in which it occurred. The wrapped error is never masked.
type PipelineError struct {
	Kind  FailureKind
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s at stage %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError builds a stage-tagged pipeline failure.
func NewPipelineError(kind FailureKind, stage string, err error) *PipelineError {
	return &PipelineError{
		Kind:  kind,
		Stage: stage,
		Err:   err,
	}
}

// KindOf extracts the failure kind from an error chain. Engine sentinel
// errors map to their kinds even when the error was not produced by the
// pipeline itself.
func KindOf(err error) FailureKind {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Kind
	}

	switch {
	case errors.Is(err, ErrEngineTimeout):
		return FailureEngineTimeout
	case errors.Is(err, ErrEngineRejected):
		return FailureEngineRejected
	case errors.Is(err, ErrEngineUnavailable):
		return FailureEngineUnavailable
	case errors.Is(err, ErrVoiceNotFound):
		return FailureVoiceNotFound
	default:
		return FailureSynthesis
	}
}
