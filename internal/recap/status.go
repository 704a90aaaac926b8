package recap

import (
	"sync"

	"recapstudio-backend/internal/models"
)

// Listener receives the status stream of a run. OnStatus is called once per
// transition or progress change; OnComplete exactly once at the end.
type Listener interface {
	OnStatus(status models.ProcessingStatus)
	OnComplete(output *models.RecapOutput, err *RunError)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Status   func(models.ProcessingStatus)
	Complete func(*models.RecapOutput, *RunError)
}

func (f ListenerFuncs) OnStatus(status models.ProcessingStatus) {
	if f.Status != nil {
		f.Status(status)
	}
}

func (f ListenerFuncs) OnComplete(output *models.RecapOutput, err *RunError) {
	if f.Complete != nil {
		f.Complete(output, err)
	}
}

// tracker enforces the ordering rules of the status stream: stages never go
// back, progress never decreases and a terminal status absorbs everything
// after it.
type tracker struct {
	mu       sync.Mutex
	listener Listener
	current  models.ProcessingStatus
}

func newTracker(l Listener) *tracker {
	if l == nil {
		l = ListenerFuncs{}
	}
	return &tracker{
		listener: l,
		current:  models.ProcessingStatus{Stage: models.StageIdle},
	}
}

// advance publishes a new status. Regressions are dropped; progress is
// clamped to [current, 100].
func (t *tracker) advance(stage models.Stage, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Stage.Terminal() || stage.Before(t.current.Stage) {
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress < t.current.Progress {
		progress = t.current.Progress
	}
	if stage == t.current.Stage && progress == t.current.Progress && message == t.current.Message {
		return
	}

	t.current = models.ProcessingStatus{Stage: stage, Progress: progress, Message: message}
	t.listener.OnStatus(t.current)
}

// fail publishes the terminal error status. Progress stays where the run
// stopped.
func (t *tracker) fail(runErr *RunError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Stage.Terminal() {
		return
	}

	detail := ""
	if runErr.Err != nil {
		detail = runErr.Err.Error()
	}
	t.current = models.ProcessingStatus{
		Stage:       models.StageError,
		Progress:    t.current.Progress,
		Message:     runErr.Message,
		ErrorKind:   runErr.Code(),
		ErrorDetail: detail,
	}
	t.listener.OnStatus(t.current)
}

func (t *tracker) snapshot() models.ProcessingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
