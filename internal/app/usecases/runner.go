package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/logging"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrCancelled     = errors.New("run cancelled")
)

// Job is one background run. It reports through progress and returns
// ErrCancelled when it stopped on the cancel flag.
type Job func(ctx context.Context, progress *Progress) error

// Runner allows a single job at a time. It keeps the last sync result until
// it is cleared, and the last extraction outcome.
type Runner struct {
	ctx    context.Context
	logger logging.LoggerService

	mu       sync.Mutex
	progress *Progress
	running  bool
	done     chan struct{}
	last     *model.SyncResult
	extract  *ExtractResult
}

func NewRunner(ctx context.Context, logger logging.LoggerService) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	close(done)
	return &Runner{
		ctx:      ctx,
		logger:   logger,
		progress: NewProgress(),
		done:     done,
	}
}

func (r *Runner) Start(kind JobKind, job Job) error {
	if job == nil {
		return errors.New("job is required")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunInProgress
	}
	progress := NewProgress()
	progress.begin(kind)
	done := make(chan struct{})
	r.progress = progress
	r.running = true
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		err := r.runJob(progress, job)

		state := model.RunDone
		switch {
		case errors.Is(err, ErrCancelled):
			state = model.RunCancelled
			err = nil
			r.logWarning(fmt.Sprintf("%s run cancelled", kind))
		case err != nil:
			state = model.RunError
			r.logError(fmt.Sprintf("%s run failed", kind), err)
		}
		progress.finish(state, err)

		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()
	return nil
}

func (r *Runner) runJob(progress *Progress, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return job(r.ctx, progress)
}

// Cancel sets the cancel flag of the current run. It reports whether a run
// was in progress.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}
	r.progress.RequestCancel()
	return true
}

func (r *Runner) Current() ProgressSnapshot {
	r.mu.Lock()
	progress := r.progress
	r.mu.Unlock()
	return progress.Snapshot()
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until the current run, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	<-done
}

func (r *Runner) LastResult() (model.SyncResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return model.SyncResult{}, false
	}
	return *r.last, true
}

func (r *Runner) SetLastResult(result model.SyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &result
}

func (r *Runner) ClearLastResult() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = nil
}

func (r *Runner) LastExtract() (ExtractResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.extract == nil {
		return ExtractResult{}, false
	}
	return *r.extract, true
}

func (r *Runner) SetLastExtract(result ExtractResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extract = &result
}

func (r *Runner) logWarning(message string) {
	if r.logger != nil {
		r.logger.LogWarning(message)
	}
}

func (r *Runner) logError(message string, err error) {
	if r.logger != nil {
		r.logger.LogError(message, err)
	}
}
