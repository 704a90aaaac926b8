package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// fileOutput writes the single recap of a CLI run to a fixed path.
type fileOutput struct {
	path string
}

func newFileOutput(path string) *fileOutput {
	return &fileOutput{path: path}
}

func (o *fileOutput) Create(uuid.UUID) (io.WriteCloser, error) {
	if dir := filepath.Dir(o.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.Create(o.path)
}

func (o *fileOutput) URL(uuid.UUID) string {
	return o.path
}

func (o *fileOutput) Release(uuid.UUID) error {
	if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
