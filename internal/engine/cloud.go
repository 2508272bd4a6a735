// Package engine provides the two synthesis engine adapters: an HTTP client
// for a remote TTS provider and an invoker for a locally installed speech
// engine. Both implement core.Engine and return raw audio bytes only; artifact
// persistence belongs to the artifact store.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/cenkalti/backoff/v4"

	"github.com/voxbr/tts-gateway/internal/core"
)

// Provider API endpoints.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

const pingTimeout = 2 * time.Second

// ErrEmptyAudio indicates the provider answered OK with no audio payload.
var ErrEmptyAudio = errors.New("received empty audio data")

// CloudOptions configures the cloud adapter.
type CloudOptions struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Cloud is the adapter for the remote HTTP TTS provider. One request deadline
// covers the initial attempt and any retries; transient network failures are
// retried with a constant backoff, provider rejections never are.
type Cloud struct {
	httpClient *http.Client
	options    CloudOptions
	log        *logger.Logger
}

// cloudRequest is the provider's JSON request payload.
type cloudRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format"`
}

// cloudErrorResponse is the provider's structured error body.
type cloudErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewCloud creates the cloud engine adapter.
func NewCloud(options CloudOptions, log *logger.Logger) *Cloud {
	return &Cloud{
		httpClient: &http.Client{},
		options:    options,
		log:        log,
	}
}

// Synthesize requests audio from the provider. Failures are classified into
// the engine sentinel errors: provider 4xx wraps core.ErrEngineRejected and is
// never retried, deadline overruns wrap core.ErrEngineTimeout, everything else
// wraps core.ErrEngineUnavailable and is retried up to the configured count.
func (c *Cloud) Synthesize(
	ctx context.Context,
	text, nativeVoiceKey string,
	format core.Format,
) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.options.Timeout)
	defer cancel()

	body, err := json.Marshal(cloudRequest{
		Text:   text,
		Voice:  nativeVoiceKey,
		Format: string(format),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.options.Backoff),
			uint64(c.options.Retries),
		),
		reqCtx,
	)

	audio, err := backoff.RetryWithData(func() ([]byte, error) {
		return c.attempt(reqCtx, body, format)
	}, policy)
	if err != nil {
		return nil, err
	}

	return audio, nil
}

// attempt performs one provider round-trip. Errors returned as
// backoff.Permanent stop the retry loop immediately.
func (c *Cloud) attempt(ctx context.Context, body []byte, format core.Format) ([]byte, error) {
	url := c.options.BaseURL + apiGenerateSpeech

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create provider request: %w", err))
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, format.ContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", core.ErrEngineTimeout, err))
		}

		return nil, fmt.Errorf("%w: %v", core.ErrEngineUnavailable, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			c.log.Warn("Failed to close provider response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio data: %v", core.ErrEngineUnavailable, err)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: %v", core.ErrEngineUnavailable, ErrEmptyAudio)
	}

	return audio, nil
}

// Ping verifies the provider answers its health endpoint.
func (c *Cloud) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	url := c.options.BaseURL + apiHealth

	req, err := http.NewRequestWithContext(pingCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check failed: %v", core.ErrEngineUnavailable, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			c.log.Warn("Failed to close health response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check status %s", core.ErrEngineUnavailable, resp.Status)
	}

	return nil
}

// classifyStatus turns a non-OK provider response into a typed engine error,
// preserving the provider's structured diagnostics when it sends any.
func classifyStatus(resp *http.Response) error {
	detail := readErrorDetail(resp)

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return backoff.Permanent(
			fmt.Errorf("%w: provider status %s: %s", core.ErrEngineRejected, resp.Status, detail),
		)
	}

	return fmt.Errorf("%w: provider status %s: %s", core.ErrEngineUnavailable, resp.Status, detail)
}

// readErrorDetail decodes the provider's JSON error body, falling back to the
// raw bytes so diagnostics are never lost.
func readErrorDetail(resp *http.Response) string {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	var structured cloudErrorResponse

	err = json.Unmarshal(raw, &structured)
	if err == nil && structured.Detail != "" {
		if structured.ErrorCode != "" {
			return fmt.Sprintf("%s (code: %s)", structured.Detail, structured.ErrorCode)
		}

		return structured.Detail
	}

	return string(raw)
}
