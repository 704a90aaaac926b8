package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/events"
	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/recap"
)

var ErrQueueFull = errors.New("recap queue is full")

// Job is a reserved run waiting for a worker.
type Job struct {
	Ticket   *recap.Ticket
	Settings models.RecapSettings
	// Cleanup runs after the job finishes, e.g. to delete the spooled upload.
	Cleanup func()
}

type Pool struct {
	queue       chan Job
	registry    *Registry
	bus         events.Bus
	logger      zerolog.Logger
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(registry *Registry, bus events.Bus, queueSize, workerCount int, logger zerolog.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		queue:       make(chan Job, queueSize),
		registry:    registry,
		bus:         bus,
		logger:      logger.With().Str("component", "worker").Logger(),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info().Int("workers", p.workerCount).Msg("started worker goroutines")
}

// Stop lets in-flight jobs finish and releases the ones still queued.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()

	for {
		select {
		case job := <-p.queue:
			job.Ticket.Release()
			if job.Cleanup != nil {
				job.Cleanup()
			}
		default:
			return
		}
	}
}

// Submit registers the run and queues it. The ticket is released when the
// queue is full.
func (p *Pool) Submit(job Job) error {
	id := job.Ticket.RunID()
	p.registry.Create(id, job.Settings)
	select {
	case p.queue <- job:
		return nil
	default:
		p.registry.Delete(id)
		job.Ticket.Release()
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			p.logger.Debug().Int("worker", id).Msg("worker shutting down")
			return
		case job := <-p.queue:
			p.process(id, job)
		}
	}
}

func (p *Pool) process(workerID int, job Job) {
	runID := job.Ticket.RunID()
	log := p.logger.With().Int("worker", workerID).Str("run_id", runID.String()).Logger()
	log.Info().Msg("processing recap run")

	if job.Cleanup != nil {
		defer job.Cleanup()
	}

	ctx := context.Background()
	var completed models.ProcessingStatus
	listener := recap.ListenerFuncs{
		Status: func(status models.ProcessingStatus) {
			if status.Stage == models.StageCompleted {
				// Held back until the output is stored with it.
				completed = status
				return
			}
			p.registry.SetStatus(runID, status)
			if status.Stage == models.StageError {
				return
			}
			p.publishStatus(ctx, runID, status, log)
		},
		Complete: func(output *models.RecapOutput, runErr *recap.RunError) {
			if runErr != nil {
				p.publish(ctx, runID, models.WSMessage{
					Type: "error",
					Payload: models.ErrorEvent{
						RunID:        runID,
						ErrorCode:    runErr.Code(),
						ErrorMessage: runErr.Message,
					},
				}, log)
				return
			}
			p.registry.Finish(runID, completed, output)
			p.publishStatus(ctx, runID, completed, log)
			p.publish(ctx, runID, models.WSMessage{
				Type:    "completed",
				Payload: models.CompletedEvent{RunID: runID, Output: *output},
			}, log)
		},
	}

	if _, err := job.Ticket.Execute(ctx, listener); err != nil {
		log.Warn().Err(err).Msg("recap run failed")
		return
	}
	log.Info().Msg("recap run finished")
}

func (p *Pool) publishStatus(ctx context.Context, runID uuid.UUID, status models.ProcessingStatus, log zerolog.Logger) {
	p.publish(ctx, runID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			RunID:    runID,
			Stage:    status.Stage,
			Progress: status.Progress,
			Message:  status.Message,
		},
	}, log)
}

func (p *Pool) publish(ctx context.Context, runID uuid.UUID, msg models.WSMessage, log zerolog.Logger) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, runID, msg); err != nil {
		log.Warn().Err(err).Str("type", msg.Type).Msg("failed to publish update")
	}
}
