package recap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// VideoStore owns the sampled outputs. A run creates one video and the
// holder of the resulting RecapOutput releases it.
type VideoStore interface {
	Create(runID uuid.UUID) (io.WriteCloser, error)
	URL(runID uuid.UUID) string
	Release(runID uuid.UUID) error
}

// FileVideoStore keeps outputs as <dir>/<run id>.mp4.
type FileVideoStore struct {
	dir    string
	urlFor func(uuid.UUID) string
}

// NewFileVideoStore creates dir if needed. A nil urlFor makes URL return the
// file path.
func NewFileVideoStore(dir string, urlFor func(uuid.UUID) string) (*FileVideoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileVideoStore{dir: dir, urlFor: urlFor}, nil
}

func (s *FileVideoStore) Path(runID uuid.UUID) string {
	return filepath.Join(s.dir, runID.String()+".mp4")
}

func (s *FileVideoStore) Create(runID uuid.UUID) (io.WriteCloser, error) {
	f, err := os.OpenFile(s.Path(runID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output video: %w", err)
	}
	return f, nil
}

func (s *FileVideoStore) URL(runID uuid.UUID) string {
	if s.urlFor != nil {
		return s.urlFor(runID)
	}
	return s.Path(runID)
}

// Open returns the stored video for serving.
func (s *FileVideoStore) Open(runID uuid.UUID) (*os.File, error) {
	return os.Open(s.Path(runID))
}

// Release deletes the stored video. Releasing twice is not an error.
func (s *FileVideoStore) Release(runID uuid.UUID) error {
	err := os.Remove(s.Path(runID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release output video: %w", err)
	}
	return nil
}
