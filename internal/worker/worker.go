// Package worker provides a NATS worker that runs synthesis jobs through the
// same pipeline the REST surface uses, for batch producers that speak
// messaging instead of HTTP.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/voxbr/tts-gateway/internal/pipeline"
)

const handleMessageTimeout = 60 * time.Second

// ErrNoReplySubject indicates a job arrived without a reply inbox.
var ErrNoReplySubject = errors.New("job message has no reply subject")

// SynthesisJob is the JSON payload consumed from the jobs subject.
type SynthesisJob struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

// jobFailure is the JSON reply for a failed job.
type jobFailure struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// NatsWorker listens for synthesis jobs on a NATS subject and replies with an
// audio-created event once the artifact is persisted (and mirrored, when a
// mirror is configured on the pipeline).
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	pipe           *pipeline.Pipeline
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	pipe *pipeline.Pipeline,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		pipe:           pipe,
		log:            log,
	}
}

// Run starts the worker and blocks until the context is cancelled, then
// drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var job SynthesisJob

	err := json.Unmarshal(msg.Data, &job)
	if err != nil {
		w.log.Error("Failed to unmarshal synthesis job: %v", err)
		w.replyFailure(msg, "BadJob", err)

		return
	}

	result, err := w.pipe.Synthesize(ctx, pipeline.Input{
		Text:     job.Text,
		VoiceID:  job.VoiceID,
		Language: job.Language,
		Format:   job.Format,
	})
	if err != nil {
		w.log.Error("Synthesis job failed: %v", err)
		w.replyFailure(msg, "SynthesisFailed", err)

		return
	}

	err = w.replySuccess(msg, result)
	if err != nil {
		w.log.Error("Failed to reply for request %s: %v", result.RequestID, err)
	}
}

// replySuccess responds with the audio-created event for the job.
func (w *NatsWorker) replySuccess(msg *nats.Msg, result pipeline.Result) error {
	if msg.Reply == "" {
		return ErrNoReplySubject
	}

	var event events.AudioChunkCreatedEvent

	event.Header.WorkflowID = result.RequestID
	event.AudioKey = result.Artifact.ID + "." + string(result.Artifact.Format)

	replyData, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) replyFailure(msg *nats.Msg, kind string, cause error) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(jobFailure{
		Error:  kind,
		Detail: cause.Error(),
	})
	if err != nil {
		w.log.Error("Failed to marshal failure reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish failure reply: %v", err)
	}
}
