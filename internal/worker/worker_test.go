// Package worker_test tests the NATS synthesis job worker.
package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbr/tts-gateway/internal/artifact"
	"github.com/voxbr/tts-gateway/internal/core"
	"github.com/voxbr/tts-gateway/internal/pipeline"
	"github.com/voxbr/tts-gateway/internal/text"
	"github.com/voxbr/tts-gateway/internal/voices"
	"github.com/voxbr/tts-gateway/internal/worker"
)

// echoEngine returns fixed audio for any input.
type echoEngine struct{}

func (echoEngine) Synthesize(_ context.Context, _, _ string, _ core.Format) ([]byte, error) {
	return []byte("job-audio-bytes"), nil
}

func (echoEngine) Ping(_ context.Context) error {
	return nil
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		natsConnection.Close()
		natsServer.Shutdown()
	}

	return natsConnection, cleanup
}

func newTestPipeline(t *testing.T) (*pipeline.Pipeline, *artifact.Store) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	store, err := artifact.New(t.TempDir(), 16000, log)
	require.NoError(t, err)

	registry, err := voices.New([]core.VoiceProfile{{
		ID:             "pt-cloud-female",
		DisplayName:    "Português (nuvem)",
		Language:       "pt",
		Backend:        core.BackendCloud,
		NativeVoiceKey: "pt-br-female-1",
	}})
	require.NoError(t, err)

	pipe := pipeline.New(pipeline.Options{
		Sanitizer:       text.NewSanitizer(5000),
		Registry:        registry,
		CloudEngine:     echoEngine{},
		LocalEngine:     echoEngine{},
		Store:           store,
		Logger:          log,
		DefaultLanguage: "pt",
		SampleRate:      16000,
	})

	return pipe, store
}

func startWorker(t *testing.T, natsConnection *nats.Conn, pipe *pipeline.Pipeline) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "worker-run.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	natsWorker := worker.NewNatsWorker(natsConnection, "tts.jobs", pipe, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)

	go func() {
		done <- natsWorker.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Log("worker did not stop in time")
		}
	})

	// Give the subscription a moment to become active.
	require.NoError(t, natsConnection.Flush())
}

func TestWorkerProcessesJob(t *testing.T) {
	t.Parallel()

	natsConnection, cleanup := createTestNatsClient(t)
	defer cleanup()

	pipe, store := newTestPipeline(t)
	startWorker(t, natsConnection, pipe)

	job, err := json.Marshal(worker.SynthesisJob{
		Text:    "Olá! Teste.",
		VoiceID: "pt-cloud-female",
		Format:  "wav",
	})
	require.NoError(t, err)

	reply, err := natsConnection.Request("tts.jobs", job, 10*time.Second)
	require.NoError(t, err)

	var event events.AudioChunkCreatedEvent

	require.NoError(t, json.Unmarshal(reply.Data, &event))
	require.NotEmpty(t, event.AudioKey)
	assert.NotEmpty(t, event.Header.WorkflowID)

	artifactID := event.AudioKey[:len(event.AudioKey)-len(".wav")]
	assert.True(t, store.Exists(artifactID))
}

func TestWorkerRepliesFailureForBadJob(t *testing.T) {
	t.Parallel()

	natsConnection, cleanup := createTestNatsClient(t)
	defer cleanup()

	pipe, _ := newTestPipeline(t)
	startWorker(t, natsConnection, pipe)

	job, err := json.Marshal(worker.SynthesisJob{
		Text:    "hello",
		VoiceID: "does-not-exist",
		Format:  "wav",
	})
	require.NoError(t, err)

	reply, err := natsConnection.Request("tts.jobs", job, 10*time.Second)
	require.NoError(t, err)

	var failure map[string]string

	require.NoError(t, json.Unmarshal(reply.Data, &failure))
	assert.Equal(t, "SynthesisFailed", failure["error"])
	assert.Contains(t, failure["detail"], "does-not-exist")
}
