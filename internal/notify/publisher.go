// Package notify publishes artifact-created events so downstream consumers
// can react to new audio without polling the gateway.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/events"
	"github.com/nats-io/nats.go"

	"github.com/voxbr/tts-gateway/internal/core"
)

// NatsPublisher announces persisted artifacts on a NATS subject.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNatsPublisher creates a publisher for the given subject.
func NewNatsPublisher(conn *nats.Conn, subject string) *NatsPublisher {
	return &NatsPublisher{
		conn:    conn,
		subject: subject,
	}
}

// ArtifactCreated publishes an audio-created event carrying the request id as
// workflow correlation and the artifact file name as the audio key.
func (p *NatsPublisher) ArtifactCreated(
	_ context.Context,
	requestID string,
	created core.AudioArtifact,
) error {
	var event events.AudioChunkCreatedEvent

	event.Header.WorkflowID = requestID
	event.AudioKey = created.ID + "." + string(created.Format)

	data, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to marshal created-event: %w", err)
	}

	err = p.conn.Publish(p.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish created-event to '%s': %w", p.subject, err)
	}

	return nil
}
