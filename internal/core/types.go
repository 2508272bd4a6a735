// Package core defines the domain types and interfaces shared across the gateway.
package core

import (
	"context"
	"io"
	"time"
)

// Backend identifies which external engine family a voice belongs to.
type Backend string

// Supported backends.
const (
	BackendCloud Backend = "cloud"
	BackendLocal Backend = "local"
)

// Format is an audio container format the gateway can produce.
type Format string

// Supported output formats.
const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatMP3 {
		return "audio/mpeg"
	}

	return "audio/wav"
}

// VoiceProfile describes one selectable voice. Profiles are loaded once at
// startup and are immutable afterwards, so concurrent reads need no locking.
type VoiceProfile struct {
	ID             string  `json:"id"              toml:"id"`
	DisplayName    string  `json:"display_name"    toml:"display_name"`
	Language       string  `json:"language"        toml:"language"`
	Backend        Backend `json:"backend"         toml:"backend"`
	NativeVoiceKey string  `json:"native_voice_key" toml:"native_voice_key"`
}

// SynthesisRequest is the validated input of one pipeline run. It is never
// persisted; only the resulting artifact survives the request.
type SynthesisRequest struct {
	Text    string
	VoiceID string
	Format  Format
}

// AudioArtifact describes one persisted audio file. Owned by the artifact
// store; the identifier is opaque and never derived from the request text.
type AudioArtifact struct {
	ID         string    `json:"artifact_id"`
	Path       string    `json:"path"`
	Format     Format    `json:"format"`
	SampleRate int       `json:"sample_rate"`
	CreatedAt  time.Time `json:"created_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

// ProbeState is the liveness of a single dependency.
type ProbeState string

// Probe states.
const (
	ProbeUp   ProbeState = "up"
	ProbeDown ProbeState = "down"
)

// OverallState is the aggregated service health.
type OverallState string

// Overall states.
const (
	OverallHealthy  OverallState = "healthy"
	OverallDegraded OverallState = "degraded"
	OverallDown     OverallState = "down"
)

// HealthStatus is the transient, on-demand health payload.
type HealthStatus struct {
	EngineCloud ProbeState   `json:"engine_cloud"`
	EngineLocal ProbeState   `json:"engine_local"`
	Storage     ProbeState   `json:"storage"`
	Overall     OverallState `json:"overall"`
	Version     string       `json:"version"`
	Uptime      string       `json:"uptime"`
}

// Engine is the uniform synthesis capability over one external TTS backend.
// Synthesize returns raw audio bytes and performs no file writes of its own.
type Engine interface {
	Synthesize(ctx context.Context, text, nativeVoiceKey string, format Format) ([]byte, error)
	Ping(ctx context.Context) error
}

// ArtifactStore manages on-disk audio artifacts. Persist must be atomic from
// the caller's perspective: a partially written file is never visible to
// Exists or Open.
type ArtifactStore interface {
	Persist(data []byte, format Format) (AudioArtifact, error)
	Exists(artifactID string) bool
	Open(artifactID string) (io.ReadCloser, AudioArtifact, error)
}

// Publisher announces a persisted artifact to interested downstream consumers.
type Publisher interface {
	ArtifactCreated(ctx context.Context, requestID string, artifact AudioArtifact) error
}
