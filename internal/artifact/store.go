// Package artifact manages on-disk audio artifacts: opaque collision-free
// naming, atomic writes, lookup, and retention sweeping.
package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/voxbr/tts-gateway/internal/core"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// tempPrefix marks in-progress writes. Files with this prefix are never
// visible through Exists or Open and are removed by the sweep.
const tempPrefix = ".tmp-"

const wavHeaderSize = 44

// bytesPerSample is fixed by the engines: 16-bit mono PCM.
const bytesPerSample = 2

// Static errors.
var (
	// ErrEmptyArtifact indicates an attempt to persist zero bytes.
	ErrEmptyArtifact = errors.New("artifact data cannot be empty")
	// ErrBadArtifactID indicates an id that could not have been issued by the store.
	ErrBadArtifactID = errors.New("malformed artifact id")
)

// Store persists audio artifacts under a single flat directory. Collision-free
// uuid naming is the concurrency-safety mechanism: concurrent Persist calls
// never touch the same path, so no locking is needed.
type Store struct {
	dir        string
	sampleRate int
	log        *logger.Logger
}

// New creates the store and its directory.
func New(dir string, sampleRate int, log *logger.Logger) (*Store, error) {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &Store{
		dir:        dir,
		sampleRate: sampleRate,
		log:        log,
	}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Persist writes the audio bytes under a fresh opaque id. The payload goes to
// a temp file in the target directory first and is renamed into place, so a
// partially written artifact is never visible to Exists or Open.
func (s *Store) Persist(data []byte, format core.Format) (core.AudioArtifact, error) {
	if len(data) == 0 {
		return core.AudioArtifact{}, ErrEmptyArtifact
	}

	artifactID := uuid.NewString()
	fileName := artifactID + "." + string(format)
	finalPath := filepath.Join(s.dir, fileName)
	tempPath := filepath.Join(s.dir, tempPrefix+fileName)

	err := os.WriteFile(tempPath, data, filePermissions)
	if err != nil {
		return core.AudioArtifact{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	err = os.Rename(tempPath, finalPath)
	if err != nil {
		removeErr := os.Remove(tempPath)
		if removeErr != nil {
			s.log.Warn("Failed to remove temp artifact '%s': %v", tempPath, removeErr)
		}

		return core.AudioArtifact{}, fmt.Errorf("failed to commit artifact: %w", err)
	}

	return core.AudioArtifact{
		ID:         artifactID,
		Path:       finalPath,
		Format:     format,
		SampleRate: s.sampleRate,
		CreatedAt:  time.Now().UTC(),
		SizeBytes:  int64(len(data)),
	}, nil
}

// Exists reports whether a committed artifact with the given id is present.
func (s *Store) Exists(artifactID string) bool {
	_, _, err := s.lookup(artifactID)

	return err == nil
}

// Open returns a reader over the artifact plus its metadata.
func (s *Store) Open(artifactID string) (io.ReadCloser, core.AudioArtifact, error) {
	path, format, err := s.lookup(artifactID)
	if err != nil {
		return nil, core.AudioArtifact{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, core.AudioArtifact{}, fmt.Errorf("%w: '%s'", core.ErrArtifactNotFound, artifactID)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, core.AudioArtifact{}, fmt.Errorf("failed to open artifact '%s': %w", artifactID, err)
	}

	meta := core.AudioArtifact{
		ID:         artifactID,
		Path:       path,
		Format:     format,
		SampleRate: s.sampleRate,
		CreatedAt:  info.ModTime().UTC(),
		SizeBytes:  info.Size(),
	}

	return file, meta, nil
}

// Sweep removes committed artifacts older than the retention window and any
// leftover temp files. Returns the number of files removed.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}

		stale := info.ModTime().Before(cutoff)
		orphanedTemp := strings.HasPrefix(entry.Name(), tempPrefix) && stale

		if !stale && !orphanedTemp {
			continue
		}

		removeErr := os.Remove(filepath.Join(s.dir, entry.Name()))
		if removeErr != nil {
			s.log.Warn("Sweep failed to remove '%s': %v", entry.Name(), removeErr)

			continue
		}

		removed++
	}

	return removed, nil
}

// CheckWritable verifies the artifact directory accepts writes. Used by the
// health reporter as its storage probe.
func (s *Store) CheckWritable() error {
	probe, err := os.CreateTemp(s.dir, tempPrefix+"probe-*")
	if err != nil {
		return fmt.Errorf("artifact directory not writable: %w", err)
	}

	name := probe.Name()

	closeErr := probe.Close()
	removeErr := os.Remove(name)

	if closeErr != nil {
		return fmt.Errorf("failed to close probe file: %w", closeErr)
	}

	if removeErr != nil {
		return fmt.Errorf("failed to remove probe file: %w", removeErr)
	}

	return nil
}

// lookup maps an id to its committed file path and format. Ids carrying path
// separators or dots cannot have been issued by Persist and are rejected
// before touching the filesystem.
func (s *Store) lookup(artifactID string) (string, core.Format, error) {
	if artifactID == "" || strings.ContainsAny(artifactID, "/\\.") {
		return "", "", fmt.Errorf("%w: '%s'", ErrBadArtifactID, artifactID)
	}

	for _, format := range []core.Format{core.FormatWAV, core.FormatMP3} {
		path := filepath.Join(s.dir, artifactID+"."+string(format))

		_, err := os.Stat(path)
		if err == nil {
			return path, format, nil
		}
	}

	return "", "", fmt.Errorf("%w: '%s'", core.ErrArtifactNotFound, artifactID)
}

// EstimateDuration estimates playback time. For wav payloads the byte rate is
// read from the RIFF header; otherwise the fixed PCM rate is assumed.
func EstimateDuration(data []byte, format core.Format, sampleRate int) time.Duration {
	if format == core.FormatWAV && len(data) > wavHeaderSize {
		byteRate := binary.LittleEndian.Uint32(data[28:32])
		if string(data[0:4]) == "RIFF" && byteRate > 0 {
			seconds := float64(len(data)-wavHeaderSize) / float64(byteRate)

			return time.Duration(seconds * float64(time.Second))
		}
	}

	if sampleRate <= 0 {
		return 0
	}

	seconds := float64(len(data)) / float64(sampleRate*bytesPerSample)

	return time.Duration(seconds * float64(time.Second))
}
