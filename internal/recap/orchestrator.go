// Package recap drives one recap run end to end: engine load, optional
// enrichment, sampling, script generation and the bookkeeping after it.
package recap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/media"
	"recapstudio-backend/internal/metrics"
	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/sampling"
	"recapstudio-backend/internal/services"
)

// Engine is the media engine the orchestrator drives.
type Engine interface {
	EnsureLoaded(ctx context.Context) error
	Run(ctx context.Context, in media.Input, plan sampling.Plan, dst io.Writer, onProgress media.ProgressFunc) (int64, error)
	Dispose(ctx context.Context) error
}

type ScriptGenerator interface {
	Generate(ctx context.Context, pc services.PromptContext, credential string) (string, error)
}

type Enricher interface {
	Enrich(ctx context.Context, settings models.RecapSettings) (services.Enrichment, error)
	RecordLearningSource(ctx context.Context, channelID string, styles []models.StyleAnalysis) error
}

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, genre string, clipDuration, intervalPattern int) error
}

type UsageCounter interface {
	IncrementRecaps(ctx context.Context) error
}

// Deps wires the orchestrator. Enricher, Advisor and Stats are optional.
type Deps struct {
	Engine   Engine
	Scripts  ScriptGenerator
	Videos   VideoStore
	Enricher Enricher
	Advisor  OutcomeRecorder
	Stats    UsageCounter

	// DefaultCredential is used when a request carries no API key.
	DefaultCredential string
	// EnrichmentTimeout bounds the enrichment stage. Zero means no limit.
	EnrichmentTimeout time.Duration
	Logger            zerolog.Logger
}

type Request struct {
	// RunID identifies the run; a zero value is replaced with a new UUID.
	RunID    uuid.UUID
	Settings models.RecapSettings
	Source   Source
}

// Orchestrator runs at most one recap at a time.
type Orchestrator struct {
	deps   Deps
	busy   atomic.Bool
	logger zerolog.Logger
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Busy reports whether a run currently holds the engine.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Validate checks the entry contract of a run. It never emits status.
func Validate(req Request) error {
	fields := make(map[string]string)
	if req.Source == nil {
		fields["video"] = "a source video is required"
	}
	if strings.TrimSpace(req.Settings.Description) == "" {
		fields["description"] = "a description is required"
	}
	if strings.TrimSpace(req.Settings.GeminiAPIKey) == "" {
		fields["gemini_api_key"] = "an API key is required"
	}
	if req.Settings.DurationSeconds < sampling.MinDurationSeconds {
		fields["duration_seconds"] = "must be at least 1 second"
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

// Ticket is a validated request holding the single run slot. It must be
// either executed or released.
type Ticket struct {
	o     *Orchestrator
	req   Request
	plan  sampling.Plan
	spent atomic.Bool
}

// Reserve validates req and claims the run slot without starting anything.
func (o *Orchestrator) Reserve(req Request) (*Ticket, error) {
	if strings.TrimSpace(req.Settings.GeminiAPIKey) == "" {
		req.Settings.GeminiAPIKey = o.deps.DefaultCredential
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}

	s := req.Settings
	return &Ticket{
		o:    o,
		req:  req,
		plan: sampling.NewPlan(s.DurationSeconds, s.IntervalSeconds, s.CaptureSeconds),
	}, nil
}

func (t *Ticket) RunID() uuid.UUID {
	return t.req.RunID
}

func (t *Ticket) Plan() sampling.Plan {
	return t.plan
}

// Release gives the slot back without running. It is a no-op once the
// ticket was executed or released.
func (t *Ticket) Release() {
	if t.spent.CompareAndSwap(false, true) {
		t.o.busy.Store(false)
	}
}

// Run validates and executes a request, blocking until it finishes.
func (o *Orchestrator) Run(ctx context.Context, req Request, l Listener) (*models.RecapOutput, error) {
	t, err := o.Reserve(req)
	if err != nil {
		return nil, err
	}
	return t.Execute(ctx, l)
}

// Execute performs the run. The listener sees every status change and one
// completion call; the same outcome is returned.
func (t *Ticket) Execute(ctx context.Context, l Listener) (out *models.RecapOutput, err error) {
	if !t.spent.CompareAndSwap(false, true) {
		return nil, errors.New("recap ticket already used")
	}
	o := t.o
	defer o.busy.Store(false)

	if l == nil {
		l = ListenerFuncs{}
	}
	tr := newTracker(l)
	log := o.logger.With().Str("run_id", t.req.RunID.String()).Logger()

	log.Info().
		Int("duration", t.plan.DurationSeconds).
		Int("interval", t.plan.IntervalSeconds).
		Int("capture", t.plan.CaptureSeconds).
		Bool("overlapping", t.plan.Overlapping).
		Msg("recap run started")
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			runErr := unknownError(tr.snapshot().Stage, fmt.Errorf("panic: %v", r))
			out, err = nil, o.fail(tr, l, runErr, log)
		}
	}()

	output, runErr := o.execute(ctx, t, tr, log)
	if runErr != nil {
		return nil, o.fail(tr, l, runErr, log)
	}

	metrics.Metrics.RunsTotal.WithLabelValues("completed").Inc()
	log.Info().Dur("elapsed", time.Since(started)).Int("clips", output.EstimatedClips).Msg("recap run completed")
	l.OnComplete(output, nil)
	return output, nil
}

func (o *Orchestrator) fail(tr *tracker, l Listener, runErr *RunError, log zerolog.Logger) error {
	tr.fail(runErr)
	metrics.Metrics.RunsTotal.WithLabelValues(string(runErr.Kind)).Inc()
	log.Error().Err(runErr.Err).
		Str("kind", runErr.Code()).
		Str("stage", string(runErr.Stage)).
		Msg("recap run failed")
	l.OnComplete(nil, runErr)
	return runErr
}

func (o *Orchestrator) execute(ctx context.Context, t *Ticket, tr *tracker, log zerolog.Logger) (*models.RecapOutput, *RunError) {
	settings := t.req.Settings
	runID := t.req.RunID

	tr.advance(models.StageLoadingEngine, 0, "Loading media engine")
	stageStart := time.Now()
	if err := o.deps.Engine.EnsureLoaded(ctx); err != nil {
		return nil, engineLoadError(err)
	}
	metrics.ObserveStage(string(models.StageLoadingEngine), stageStart)
	tr.advance(models.StageLoadingEngine, 10, "Media engine ready")

	enrichment := o.enrich(ctx, settings, tr, log)

	tr.advance(models.StageSamplingVideo, 40, "Sampling video clips")
	stageStart = time.Now()
	if err := o.sample(ctx, t, tr); err != nil {
		o.releaseVideo(runID, log)
		return nil, samplingError(err)
	}
	metrics.ObserveStage(string(models.StageSamplingVideo), stageStart)
	tr.advance(models.StageSamplingVideo, 70, "Video sampled")

	tr.advance(models.StageGeneratingScript, 75, "Writing the narration script")
	stageStart = time.Now()
	script, err := o.deps.Scripts.Generate(ctx, services.PromptContext{
		Description: settings.Description,
		Genre:       settings.Genre,
		Movie:       enrichment.Movie,
		Styles:      enrichment.Styles,
	}, settings.GeminiAPIKey)
	if err != nil {
		o.releaseVideo(runID, log)
		return nil, scriptError(err)
	}
	metrics.ObserveStage(string(models.StageGeneratingScript), stageStart)
	tr.advance(models.StageGeneratingScript, 90, "Script ready")

	o.bookkeep(ctx, t, enrichment, log)

	if err := o.deps.Engine.Dispose(ctx); err != nil {
		log.Warn().Err(err).Msg("engine dispose failed")
	}

	output := &models.RecapOutput{
		VideoURL:       o.deps.Videos.URL(runID),
		Script:         script,
		EstimatedClips: t.plan.EstimatedClips,
	}
	tr.advance(models.StageCompleted, 100, "Recap ready")
	return output, nil
}

// enrich runs the optional context lookups. Failures degrade to an empty
// enrichment.
func (o *Orchestrator) enrich(ctx context.Context, settings models.RecapSettings, tr *tracker, log zerolog.Logger) services.Enrichment {
	if o.deps.Enricher == nil || !(settings.EnableEnrichmentSearch || settings.EnableStyleLearning) {
		return services.Enrichment{}
	}

	tr.advance(models.StageEnriching, 20, "Gathering movie and style context")
	stageStart := time.Now()

	if o.deps.EnrichmentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deps.EnrichmentTimeout)
		defer cancel()
	}

	enrichment, err := o.deps.Enricher.Enrich(ctx, settings)
	if err != nil {
		log.Warn().Err(err).Msg("enrichment failed, continuing without it")
	}
	metrics.ObserveStage(string(models.StageEnriching), stageStart)
	tr.advance(models.StageEnriching, 40, "Context gathered")
	return enrichment
}

func (o *Orchestrator) sample(ctx context.Context, t *Ticket, tr *tracker) error {
	src, err := t.req.Source.Open(ctx)
	if err != nil {
		return &media.SamplingError{Reason: media.ReasonBadInput, Err: err}
	}
	defer src.Close()

	dst, err := o.deps.Videos.Create(t.req.RunID)
	if err != nil {
		return &media.SamplingError{Reason: media.ReasonIO, Err: err}
	}

	in := media.Input{Name: t.req.Source.Name(), Reader: src}
	_, err = o.deps.Engine.Run(ctx, in, t.plan, dst, func(p float64) {
		tr.advance(models.StageSamplingVideo, 40+int(math.Round(p*30)), "Sampling video clips")
	})
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = &media.SamplingError{Reason: media.ReasonIO, Err: closeErr}
	}
	return err
}

// bookkeep records the outcome of a successful script. Nothing here can fail
// the run.
func (o *Orchestrator) bookkeep(ctx context.Context, t *Ticket, enrichment services.Enrichment, log zerolog.Logger) {
	settings := t.req.Settings

	if o.deps.Advisor != nil && strings.TrimSpace(settings.Genre) != "" {
		if err := o.deps.Advisor.RecordOutcome(ctx, settings.Genre, t.plan.CaptureSeconds, t.plan.IntervalSeconds); err != nil {
			log.Warn().Err(err).Msg("failed to record learning outcome")
		}
	}

	if o.deps.Stats != nil {
		if err := o.deps.Stats.IncrementRecaps(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to increment usage counter")
		}
	}

	if o.deps.Enricher != nil && len(enrichment.Styles) > 0 {
		if err := o.deps.Enricher.RecordLearningSource(ctx, settings.ChannelID, enrichment.Styles); err != nil {
			log.Warn().Err(err).Msg("failed to record learning source")
		}
	}
}

func (o *Orchestrator) releaseVideo(runID uuid.UUID, log zerolog.Logger) {
	if err := o.deps.Videos.Release(runID); err != nil {
		log.Warn().Err(err).Msg("failed to release sampled video")
	}
}
