package tracker

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/chr1sbest/imagebatch/internal/logger"
	"github.com/chr1sbest/imagebatch/internal/task"
)

// Recorder mirrors a batch run into run_state.json and run_metrics.json. It
// implements the engine's Observer interface.
type Recorder struct {
	w     *Writer
	log   logger.Logger
	now   func() time.Time
	runID string

	mu         sync.Mutex
	state      RunState
	itemImages int
}

// NewRecorder creates a recorder for runID and writes the initial state.
func NewRecorder(w *Writer, runID string, log logger.Logger) *Recorder {
	now := time.Now()
	r := &Recorder{
		w:     w,
		log:   log,
		now:   time.Now,
		runID: runID,
		state: RunState{
			RunID:     runID,
			PID:       os.Getpid(),
			StartedAt: now,
			UpdatedAt: now,
			IsRunning: true,
			Status:    StatusStarting,
		},
	}
	w.BeginRun(runID)
	r.mu.Lock()
	r.flushLocked()
	r.mu.Unlock()
	return r
}

// State returns a copy of the recorded state.
func (r *Recorder) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CancelRequested records that a stop was asked for.
func (r *Recorder) CancelRequested() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.IsRunning || r.state.CancelRequested {
		return
	}
	r.state.CancelRequested = true
	r.state.Status = StatusStopping
	r.flushLocked()
}

func (r *Recorder) ItemStarted(index, total int, item task.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemImages = 0
	r.state.ItemIndex = index
	r.state.ItemTotal = total
	r.state.Description = item.Description()
	r.state.CurrentStep = ""
	if !r.state.CancelRequested {
		r.state.Status = StatusRunning
	}
	r.flushLocked()
}

func (r *Recorder) StepStarted(index int, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.CurrentStep = step
	r.flushLocked()
}

func (r *Recorder) ImageSaved(index int, item task.Item, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemImages++
	r.state.ImagesSaved++
	r.flushLocked()
}

func (r *Recorder) ImageFailed(index int, item task.Item, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.ImagesFailed++
	r.flushLocked()
}

func (r *Recorder) ItemFinished(index, total int, item task.Item, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state.ItemsFailed++
		r.state.LastError = err.Error()
	}
	r.state.CurrentStep = ""
	r.w.AddItem(r.runID, ItemDelta{Images: r.itemImages, Failed: err != nil})
	r.flushLocked()
}

func (r *Recorder) RunFinished(processed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.IsRunning = false
	r.state.CurrentStep = ""
	switch {
	case errors.Is(err, context.Canceled):
		r.state.Status = StatusStopped
	case err != nil:
		r.state.Status = StatusFailed
		r.state.LastError = err.Error()
	case r.state.CancelRequested && processed < r.state.ItemTotal:
		r.state.Status = StatusStopped
	default:
		r.state.Status = StatusCompleted
		r.w.MarkComplete(r.runID)
	}
	r.flushLocked()
}

func (r *Recorder) flushLocked() {
	r.state.UpdatedAt = r.now()
	if err := r.w.WriteRunState(r.state); err != nil {
		r.log.Warn("failed to write run state",
			logger.F("path", r.w.RunStatePath),
			logger.F("error", err),
		)
	}
}
