package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recapstudio-backend/internal/sampling"
)

type fakeRunner struct {
	probe    *VideoInfo
	probeErr error
	runErr   error
	logLines []string
	progress []*Progress
	output   []byte
	lastArgs []string
	runs     int32
}

func (f *fakeRunner) Version(ctx context.Context) (string, error) {
	return "ffmpeg version fake", nil
}

func (f *fakeRunner) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.probe != nil {
		return f.probe, nil
	}
	return &VideoInfo{FilePath: path, Duration: 80 * time.Second, VideoCodec: "h264"}, nil
}

func (f *fakeRunner) Run(ctx context.Context, opts RunOptions) error {
	atomic.AddInt32(&f.runs, 1)
	f.lastArgs = opts.Args
	for _, line := range f.logLines {
		opts.LogHandler(line)
	}
	for _, p := range f.progress {
		opts.ProgressHandler(p)
	}
	if f.runErr != nil {
		return f.runErr
	}
	out := opts.Args[len(opts.Args)-1]
	data := f.output
	if data == nil {
		data = []byte("sampled-video")
	}
	return os.WriteFile(out, data, 0600)
}

func newTestEngine(t *testing.T, r Runner) *Engine {
	t.Helper()
	e := NewEngine(zerolog.Nop(), func(ctx context.Context) (Runner, error) { return r, nil }, t.TempDir())
	require.NoError(t, e.EnsureLoaded(context.Background()))
	return e
}

func stagedFiles(t *testing.T, e *Engine) []string {
	t.Helper()
	entries, err := os.ReadDir(e.workDir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestEnsureLoaded_OnlyOnce(t *testing.T) {
	var calls int
	e := NewEngine(zerolog.Nop(), func(ctx context.Context) (Runner, error) {
		calls++
		return &fakeRunner{}, nil
	}, t.TempDir())

	require.NoError(t, e.EnsureLoaded(context.Background()))
	require.NoError(t, e.EnsureLoaded(context.Background()))
	assert.Equal(t, 1, calls)
	assert.True(t, e.Loaded())
}

func TestEnsureLoaded_RetriesAfterFailure(t *testing.T) {
	var calls int
	e := NewEngine(zerolog.Nop(), func(ctx context.Context) (Runner, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("ffmpeg not found in PATH")
		}
		return &fakeRunner{}, nil
	}, t.TempDir())

	err := e.EnsureLoaded(context.Background())
	assert.ErrorIs(t, err, ErrEngineLoad)
	assert.False(t, e.Loaded())

	require.NoError(t, e.EnsureLoaded(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestRun_CopiesOutputAndCleansUp(t *testing.T) {
	r := &fakeRunner{
		progress: []*Progress{
			{Frame: 10, OutTime: 2500 * time.Millisecond},
			{Frame: 20, OutTime: 5 * time.Second},
			{Frame: 60, OutTime: 15 * time.Second},
			{Frame: 0, OutTime: -time.Second},
			{Frame: 80, OutTime: 10 * time.Second, Done: true},
		},
	}
	e := newTestEngine(t, r)

	var fractions []float64
	var dst bytes.Buffer
	n, err := e.Run(context.Background(), Input{Name: "movie.MKV", Reader: strings.NewReader("raw")},
		sampling.NewPlan(30, 8, 1), &dst, func(f float64) { fractions = append(fractions, f) })

	require.NoError(t, err)
	assert.Equal(t, int64(len("sampled-video")), n)
	assert.Equal(t, "sampled-video", dst.String())
	assert.Equal(t, []float64{0.25, 0.5, 1}, fractions)
	assert.Empty(t, stagedFiles(t, e))

	require.Len(t, r.lastArgs, 9)
	assert.True(t, strings.HasSuffix(r.lastArgs[1], ".mkv"))
	assert.Equal(t, "select='lt(mod(t,8),1)',setpts=N/FRAME_RATE/TB", r.lastArgs[3])
}

func TestRun_FailureStillCleansUp(t *testing.T) {
	r := &fakeRunner{
		runErr:   errors.New("exit status 1"),
		logLines: []string{"[mov,mp4] movie.mp4: Invalid data found when processing input"},
	}
	e := newTestEngine(t, r)

	_, err := e.Run(context.Background(), Input{Name: "movie.mp4", Reader: strings.NewReader("junk")},
		sampling.NewPlan(30, 8, 1), &bytes.Buffer{}, nil)

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonBadInput, se.Reason)
	assert.Empty(t, stagedFiles(t, e))
	require.NoError(t, e.Dispose(context.Background()))
}

func TestRun_EngineFaultWithoutInputMarkers(t *testing.T) {
	r := &fakeRunner{
		runErr:   errors.New("exit status 187"),
		logLines: []string{"Error initializing filter 'select'"},
	}
	e := newTestEngine(t, r)

	_, err := e.Run(context.Background(), Input{Name: "a.mp4", Reader: strings.NewReader("x")},
		sampling.NewPlan(30, 8, 1), &bytes.Buffer{}, nil)

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonEngineFault, se.Reason)
}

func TestRun_ProbeFailureIsBadInput(t *testing.T) {
	r := &fakeRunner{probeErr: errors.New("input has no video stream")}
	e := newTestEngine(t, r)

	_, err := e.Run(context.Background(), Input{Name: "a.mp3", Reader: strings.NewReader("x")},
		sampling.NewPlan(30, 8, 1), &bytes.Buffer{}, nil)

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonBadInput, se.Reason)
	assert.Equal(t, int32(0), r.runs)
	assert.Empty(t, stagedFiles(t, e))
}

func TestRun_EmptyOutputIsIOFailure(t *testing.T) {
	r := &fakeRunner{output: []byte{}}
	e := newTestEngine(t, r)

	_, err := e.Run(context.Background(), Input{Name: "a.mp4", Reader: strings.NewReader("x")},
		sampling.NewPlan(30, 8, 1), &bytes.Buffer{}, nil)

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonIO, se.Reason)
}

func TestRun_RequiresLoadedEngine(t *testing.T) {
	e := NewEngine(zerolog.Nop(), func(ctx context.Context) (Runner, error) { return &fakeRunner{}, nil }, t.TempDir())

	_, err := e.Run(context.Background(), Input{Name: "a.mp4", Reader: strings.NewReader("x")},
		sampling.NewPlan(30, 8, 1), &bytes.Buffer{}, nil)

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonEngineFault, se.Reason)
}

func TestStagedExt(t *testing.T) {
	assert.Equal(t, ".mov", stagedExt("clip.MOV"))
	assert.Equal(t, ".mp4", stagedExt("noext"))
	assert.Equal(t, ".mp4", stagedExt("weird.extension-too-long"))
}
