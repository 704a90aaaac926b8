package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/sampling"
)

const logTailSize = 20

// Loader produces a ready Runner. It is called by EnsureLoaded until it
// succeeds once.
type Loader func(ctx context.Context) (Runner, error)

// FFmpegLoader resolves the local binaries and checks that ffmpeg starts.
func FFmpegLoader(logger zerolog.Logger, threads int) Loader {
	return func(ctx context.Context) (Runner, error) {
		exe, err := NewExecutor(logger, threads)
		if err != nil {
			return nil, err
		}
		version, err := exe.Version(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("version", version).Msg("ffmpeg ready")
		return exe, nil
	}
}

// Engine owns one ffmpeg runner and a private work directory where inputs
// and outputs are staged. Only one Run executes at a time.
type Engine struct {
	logger  zerolog.Logger
	load    Loader
	workDir string

	mu     sync.Mutex
	runner Runner
	staged map[string]struct{}
}

// NewEngine creates an unloaded engine. An empty workDir gets a temporary
// directory on first load.
func NewEngine(logger zerolog.Logger, load Loader, workDir string) *Engine {
	return &Engine{
		logger:  logger.With().Str("component", "media_engine").Logger(),
		load:    load,
		workDir: workDir,
		staged:  make(map[string]struct{}),
	}
}

// Loaded reports whether EnsureLoaded has succeeded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runner != nil
}

// EnsureLoaded initializes the engine once. Later calls return immediately;
// a failed load is attempted again on the next call.
func (e *Engine) EnsureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner != nil {
		return nil
	}

	if e.workDir == "" {
		dir, err := os.MkdirTemp("", "recapstudio-engine-")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEngineLoad, err)
		}
		e.workDir = dir
	} else if err := os.MkdirAll(e.workDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineLoad, err)
	}

	runner, err := e.load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineLoad, err)
	}

	e.runner = runner
	e.logger.Info().Str("work_dir", e.workDir).Msg("media engine loaded")
	return nil
}

// Run stages the input, executes the sampling plan and copies the result to
// dst. Both staged files are removed before Run returns, whatever the
// outcome. onProgress only ever sees values in [0,1].
func (e *Engine) Run(ctx context.Context, in Input, plan sampling.Plan, dst io.Writer, onProgress ProgressFunc) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner == nil {
		return 0, &SamplingError{Reason: ReasonEngineFault, Err: errors.New("engine not loaded")}
	}
	if in.Reader == nil {
		return 0, &SamplingError{Reason: ReasonBadInput, Err: errors.New("no input video")}
	}

	id := uuid.New().String()
	inPath := filepath.Join(e.workDir, "in-"+id+stagedExt(in.Name))
	outPath := filepath.Join(e.workDir, "out-"+id+".mp4")
	defer e.release(inPath)
	defer e.release(outPath)

	e.staged[inPath] = struct{}{}
	if err := writeStaged(inPath, in.Reader); err != nil {
		return 0, &SamplingError{Reason: ReasonIO, Err: fmt.Errorf("failed to stage input: %w", err)}
	}

	info, err := e.runner.Probe(ctx, inPath)
	if err != nil {
		return 0, &SamplingError{Reason: ReasonBadInput, Err: err}
	}
	expected := plan.ExpectedOutputSeconds(info.Duration.Seconds())

	log := e.logger.With().Str("run", id).Logger()
	log.Info().
		Dur("input_duration", info.Duration).
		Str("filter", plan.Filter).
		Float64("expected_output_seconds", expected).
		Msg("sampling video")

	var tailMu sync.Mutex
	tail := make([]string, 0, logTailSize)
	e.staged[outPath] = struct{}{}
	err = e.runner.Run(ctx, RunOptions{
		Args: plan.Args(inPath, outPath),
		ProgressHandler: func(p *Progress) {
			if onProgress == nil || expected <= 0 {
				return
			}
			fraction := p.OutTime.Seconds() / expected
			if p.Done {
				fraction = 1
			}
			if fraction < 0 || fraction > 1 {
				return
			}
			onProgress(fraction)
		},
		LogHandler: func(line string) {
			if strings.Contains(line, "=") && !strings.Contains(line, " ") {
				return
			}
			tailMu.Lock()
			defer tailMu.Unlock()
			if len(tail) == logTailSize {
				tail = tail[1:]
			}
			tail = append(tail, line)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, &SamplingError{Reason: ReasonEngineFault, Err: ctx.Err()}
		}
		log.Warn().Err(err).Strs("log_tail", tail).Msg("ffmpeg failed")
		return 0, &SamplingError{Reason: classifyLog(tail), Err: err}
	}

	f, err := os.Open(outPath)
	if err != nil {
		return 0, &SamplingError{Reason: ReasonIO, Err: fmt.Errorf("failed to read output: %w", err)}
	}
	defer f.Close()

	n, err := io.Copy(dst, f)
	if err != nil {
		return n, &SamplingError{Reason: ReasonIO, Err: fmt.Errorf("failed to copy output: %w", err)}
	}
	if n == 0 {
		return 0, &SamplingError{Reason: ReasonIO, Err: errors.New("engine produced an empty output")}
	}
	return n, nil
}

// Dispose removes any staged files a previous Run could not delete.
func (e *Engine) Dispose(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for path := range e.staged {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(e.staged, path)
	}
	return errors.Join(errs...)
}

// release deletes one staged file; on failure the name stays tracked for
// Dispose. Callers hold e.mu.
func (e *Engine) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn().Err(err).Str("path", path).Msg("failed to remove staged file")
		return
	}
	delete(e.staged, path)
}

func writeStaged(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func stagedExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\ `) {
		return ".mp4"
	}
	return ext
}
