package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/book-expert/logger"

	"github.com/voxbr/tts-gateway/internal/core"
)

const localPingTimeout = 2 * time.Second

// ErrFormatUnsupported indicates the local engine cannot emit the requested
// format. espeak-ng writes wav only; transcoding is out of scope.
var ErrFormatUnsupported = errors.New("local engine emits wav only")

// LocalOptions configures the local adapter.
type LocalOptions struct {
	Binary  string
	Timeout time.Duration
}

// Local invokes a locally installed speech engine (espeak-ng) synchronously.
// Local engines can hang, so every invocation runs under a wall-clock deadline;
// on overrun the process is killed and core.ErrEngineTimeout is surfaced.
type Local struct {
	options LocalOptions
	log     *logger.Logger
}

// NewLocal creates the local engine adapter.
func NewLocal(options LocalOptions, log *logger.Logger) *Local {
	return &Local{
		options: options,
		log:     log,
	}
}

// Synthesize runs the speech engine and returns the generated audio bytes.
// The engine writes into a temp file which is removed before returning.
func (l *Local) Synthesize(
	ctx context.Context,
	text, nativeVoiceKey string,
	format core.Format,
) ([]byte, error) {
	if format != core.FormatWAV {
		return nil, fmt.Errorf("%w: %v", core.ErrEngineRejected, ErrFormatUnsupported)
	}

	tempFile, err := os.CreateTemp("", "tts-local-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for engine output: %w", err)
	}

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil && !os.IsNotExist(removeErr) {
			l.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, l.options.Timeout)
	defer cancel()

	args := []string{
		"-v", nativeVoiceKey,
		"-w", tempFile.Name(),
		text,
	}

	var stderr bytes.Buffer

	// #nosec G204 -- binary comes from configuration, voice key from the registry
	cmd := exec.CommandContext(runCtx, l.options.Binary, args...)
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		return nil, l.classifyRunError(runCtx, runErr, stderr.String())
	}

	audio, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read engine output: %w", err)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: engine produced no audio", core.ErrEngineUnavailable)
	}

	return audio, nil
}

// Ping checks the engine binary answers a version query.
func (l *Local) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, localPingTimeout)
	defer cancel()

	cmd := exec.CommandContext(pingCtx, l.options.Binary, "--version")

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("%w: version probe failed: %v", core.ErrEngineUnavailable, err)
	}

	return nil
}

// classifyRunError maps a process failure to the engine error taxonomy.
// Deadline overruns become timeouts; a missing binary is unavailability; any
// other non-zero exit means the engine refused the input.
func (l *Local) classifyRunError(ctx context.Context, runErr error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s killed after deadline", core.ErrEngineTimeout, l.options.Binary)
	}

	if errors.Is(runErr, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s: %v", core.ErrEngineUnavailable, l.options.Binary, runErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return fmt.Errorf("%w: exit status %d: %s", core.ErrEngineRejected, exitErr.ExitCode(), stderr)
	}

	return fmt.Errorf("%w: %v", core.ErrEngineUnavailable, runErr)
}
