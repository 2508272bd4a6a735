package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Mirror replicates persisted artifacts into a NATS JetStream object-store
// bucket so downstream consumers can fetch audio without filesystem access.
// Mirroring is best-effort: callers log upload failures instead of failing
// the originating request.
type Mirror struct {
	bucket string
	store  nats.ObjectStore
}

// NewMirror creates the bucket or binds to it when it already exists.
func NewMirror(jetstreamContext nats.JetStreamContext, bucketName string) (*Mirror, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Audio artifact mirror for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create mirror bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to mirror bucket '%s': %w", bucketName, err)
		}
	}

	return &Mirror{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Upload stores a copy of the artifact under its file name.
func (m *Mirror) Upload(_ context.Context, key string, data []byte) error {
	_, err := m.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, m.bucket, err)
	}

	return nil
}

// Download retrieves a mirrored artifact.
func (m *Mirror) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := m.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, m.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}
