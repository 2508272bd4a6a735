package artifact_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/voxbr/tts-gateway/internal/artifact"
)

// startTestServer starts an in-memory NATS server with JetStream enabled.
func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestMirrorUploadDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	mirror, err := artifact.NewMirror(jetstreamContext, "TTS_AUDIO_TEST")
	require.NoError(t, err)

	ctx := context.Background()
	key := "0b51a1de-0000-4000-8000-000000000000.wav"
	payload := []byte("mirrored audio bytes")

	require.NoError(t, mirror.Upload(ctx, key, payload))

	downloaded, err := mirror.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, payload, downloaded)
}

func TestMirrorBindsToExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := artifact.NewMirror(jetstreamContext, "TTS_AUDIO_BIND")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "a.wav", []byte("a")))

	second, err := artifact.NewMirror(jetstreamContext, "TTS_AUDIO_BIND")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "a.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), data)
}
