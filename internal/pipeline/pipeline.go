// Package pipeline orchestrates one synthesis request from validation to a
// persisted audio artifact.
//
// Stages: Received → Validated → VoiceResolved → Synthesizing → Persisted →
// Completed, with a stage-tagged typed failure reachable from any non-terminal
// stage. Runs are independent; the only shared state is the read-only voice
// registry and the artifact directory, which is safe through collision-free
// naming.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/voxbr/tts-gateway/internal/artifact"
	"github.com/voxbr/tts-gateway/internal/core"
	"github.com/voxbr/tts-gateway/internal/text"
	"github.com/voxbr/tts-gateway/internal/voices"
)

// Stage names used in failure tags and logs.
const (
	StageValidate   = "validate"
	StageResolve    = "resolve"
	StageSynthesize = "synthesize"
	StagePersist    = "persist"
)

// ErrUnsupportedFormat indicates the requested output format is not served.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ErrLocalMP3 indicates an mp3 request routed to a local-backend voice.
var ErrLocalMP3 = errors.New("local voices produce wav only")

// Input is the raw, unvalidated synthesis request as received from a caller.
// VoiceID and Language are optional; Format defaults to wav.
type Input struct {
	Text     string
	VoiceID  string
	Language string
	Format   string
}

// Result is the terminal state of a successful run.
type Result struct {
	RequestID string
	Artifact  core.AudioArtifact
	Voice     core.VoiceProfile
	Duration  time.Duration
}

// Uploader mirrors persisted artifacts to a secondary store, best-effort.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Options carries the pipeline's collaborators. Mirror and Publisher may be
// nil; everything else is required.
type Options struct {
	Sanitizer       *text.Sanitizer
	Registry        *voices.Registry
	CloudEngine     core.Engine
	LocalEngine     core.Engine
	Store           core.ArtifactStore
	Mirror          Uploader
	Publisher       core.Publisher
	Logger          *logger.Logger
	DefaultVoice    string
	DefaultLanguage string
	SampleRate      int
}

// Pipeline runs synthesis requests. Safe for concurrent use.
type Pipeline struct {
	opts Options
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Synthesize executes the full request-to-artifact flow. On failure the
// returned error is a *core.PipelineError carrying the failure kind and the
// stage that produced it; no engine is invoked for input that fails
// validation or voice resolution.
func (p *Pipeline) Synthesize(ctx context.Context, input Input) (Result, error) {
	requestID := uuid.NewString()
	started := time.Now()

	request, err := p.validate(input)
	if err != nil {
		return p.fail(requestID, started, err)
	}

	voice, err := p.resolveVoice(request, input.Language)
	if err != nil {
		return p.fail(requestID, started, err)
	}

	audio, err := p.invoke(ctx, request, voice)
	if err != nil {
		return p.fail(requestID, started, err)
	}

	persisted, err := p.opts.Store.Persist(audio, request.Format)
	if err != nil {
		return p.fail(requestID, started,
			core.NewPipelineError(core.FailurePersistence, StagePersist, err))
	}

	p.announce(ctx, requestID, persisted, audio)

	result := Result{
		RequestID: requestID,
		Artifact:  persisted,
		Voice:     voice,
		Duration:  artifact.EstimateDuration(audio, request.Format, p.opts.SampleRate),
	}

	p.opts.Logger.Info(
		"request=%s voice=%s format=%s text_len=%d artifact=%s elapsed_ms=%d",
		requestID, voice.ID, request.Format, len(request.Text),
		persisted.ID, time.Since(started).Milliseconds(),
	)

	return result, nil
}

// validate enforces format support and text constraints before anything else
// runs. Failure kind: ValidationError.
func (p *Pipeline) validate(input Input) (core.SynthesisRequest, error) {
	format := core.Format(input.Format)
	if input.Format == "" {
		format = core.FormatWAV
	}

	if format != core.FormatWAV && format != core.FormatMP3 {
		return core.SynthesisRequest{}, core.NewPipelineError(
			core.FailureValidation, StageValidate,
			fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, input.Format),
		)
	}

	sanitized, err := p.opts.Sanitizer.Sanitize(input.Text)
	if err != nil {
		return core.SynthesisRequest{}, core.NewPipelineError(core.FailureValidation, StageValidate, err)
	}

	return core.SynthesisRequest{
		Text:    sanitized,
		VoiceID: input.VoiceID,
		Format:  format,
	}, nil
}

// resolveVoice maps the request to a profile. An explicit voice id wins; an
// absent id falls back to the first voice registered for the requested
// language, then to the configured default voice, then to the default
// language's first voice.
func (p *Pipeline) resolveVoice(
	request core.SynthesisRequest,
	language string,
) (core.VoiceProfile, error) {
	var (
		voice core.VoiceProfile
		err   error
	)

	switch {
	case request.VoiceID != "":
		voice, err = p.opts.Registry.Resolve(request.VoiceID)
	case language != "":
		voice = p.opts.Registry.DefaultForLanguage(language)
	case p.opts.DefaultVoice != "":
		voice, err = p.opts.Registry.Resolve(p.opts.DefaultVoice)
	default:
		voice = p.opts.Registry.DefaultForLanguage(p.opts.DefaultLanguage)
	}

	if err != nil {
		return core.VoiceProfile{}, core.NewPipelineError(core.FailureVoiceNotFound, StageResolve, err)
	}

	if voice.Backend == core.BackendLocal && request.Format == core.FormatMP3 {
		return core.VoiceProfile{}, core.NewPipelineError(
			core.FailureValidation, StageResolve,
			fmt.Errorf("%w: voice '%s'", ErrLocalMP3, voice.ID),
		)
	}

	return voice, nil
}

// invoke dispatches to the adapter matching the voice's backend and tags
// adapter failures with their engine kind without masking the cause.
func (p *Pipeline) invoke(
	ctx context.Context,
	request core.SynthesisRequest,
	voice core.VoiceProfile,
) ([]byte, error) {
	selected := p.opts.CloudEngine
	if voice.Backend == core.BackendLocal {
		selected = p.opts.LocalEngine
	}

	audio, err := selected.Synthesize(ctx, request.Text, voice.NativeVoiceKey, request.Format)
	if err != nil {
		return nil, core.NewPipelineError(core.KindOf(err), StageSynthesize, err)
	}

	return audio, nil
}

// announce mirrors the artifact and publishes the created-event. Both are
// best-effort; the artifact is already durable at this point.
func (p *Pipeline) announce(ctx context.Context, requestID string, persisted core.AudioArtifact, audio []byte) {
	if p.opts.Mirror != nil {
		key := persisted.ID + "." + string(persisted.Format)

		err := p.opts.Mirror.Upload(ctx, key, audio)
		if err != nil {
			p.opts.Logger.Warn("Failed to mirror artifact %s: %v", persisted.ID, err)
		}
	}

	if p.opts.Publisher != nil {
		err := p.opts.Publisher.ArtifactCreated(ctx, requestID, persisted)
		if err != nil {
			p.opts.Logger.Warn("Failed to publish created-event for %s: %v", persisted.ID, err)
		}
	}
}

// fail logs the terminal failure and normalizes the error type.
func (p *Pipeline) fail(requestID string, started time.Time, err error) (Result, error) {
	kind := core.KindOf(err)

	p.opts.Logger.Error(
		"request=%s kind=%s elapsed_ms=%d error=%v",
		requestID, kind, time.Since(started).Milliseconds(), err,
	)

	return Result{}, err
}
