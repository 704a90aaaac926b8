package worker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"recapstudio-backend/internal/models"
)

// Registry keeps the runs of this server process in memory.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*models.RecapRun
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[uuid.UUID]*models.RecapRun),
		now:  time.Now,
	}
}

// Create records a queued run. Credentials are stripped before storing.
func (r *Registry) Create(id uuid.UUID, settings models.RecapSettings) models.RecapRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	run := &models.RecapRun{
		ID:        id,
		Settings:  settings.Redacted(),
		Status:    models.ProcessingStatus{Stage: models.StageIdle, Message: "Queued"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.runs[id] = run
	return *run
}

func (r *Registry) Get(id uuid.UUID) (models.RecapRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return models.RecapRun{}, false
	}
	out := *run
	if run.Output != nil {
		output := *run.Output
		out.Output = &output
	}
	return out, true
}

func (r *Registry) SetStatus(id uuid.UUID, status models.ProcessingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.runs[id]; ok {
		run.Status = status
		run.UpdatedAt = r.now().UTC()
	}
}

func (r *Registry) SetOutput(id uuid.UUID, output *models.RecapOutput) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.runs[id]; ok {
		run.Output = output
		run.UpdatedAt = r.now().UTC()
	}
}

// Finish stores the final status together with the output, so a completed
// run is never observed without its video.
func (r *Registry) Finish(id uuid.UUID, status models.ProcessingStatus, output *models.RecapOutput) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.runs[id]; ok {
		run.Status = status
		run.Output = output
		run.UpdatedAt = r.now().UTC()
	}
}

// TakeOutput detaches the output so its video can be released exactly once.
func (r *Registry) TakeOutput(id uuid.UUID) (*models.RecapOutput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok || run.Output == nil {
		return nil, false
	}
	out := run.Output
	run.Output = nil
	run.UpdatedAt = r.now().UTC()
	return out, true
}

func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}
