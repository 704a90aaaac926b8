package recap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source supplies the input video for a run. It is opened only once the
// engine is ready to sample.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a video that already sits on local disk, such as an
// uploaded file spooled by the HTTP handler.
type FileSource struct {
	Path string
	// DisplayName overrides the base name of Path when set.
	DisplayName string
}

func (s FileSource) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return filepath.Base(s.Path)
}

func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open source video: %w", err)
	}
	return f, nil
}

// Downloader fetches a remote video as a stream.
type Downloader interface {
	DownloadVideo(ctx context.Context, videoURL string) (io.ReadCloser, string, error)
}

// URLSource streams a remote video, for example a YouTube link.
type URLSource struct {
	URL        string
	Downloader Downloader

	name string
}

func (s *URLSource) Name() string {
	if s.name != "" {
		return s.name
	}
	return s.URL
}

func (s *URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, name, err := s.Downloader.DownloadVideo(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	s.name = name
	return rc, nil
}
