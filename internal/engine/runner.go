// Package engine drives the host page through the per-item image generation
// script: waiting for DOM state, forcing values into controlled inputs and
// running a cancellable batch over a task list.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/logger"
	"github.com/chr1sbest/imagebatch/internal/task"
)

// Downloader saves the resource at url under filename and returns the path
// written. Failures are the downloader's to log; ok only tells the runner
// which observer event to send, and never aborts a batch.
type Downloader interface {
	Download(ctx context.Context, url, filename string) (path string, ok bool)
}

// FailurePolicy decides what happens to the rest of a batch after an item fails.
type FailurePolicy string

const (
	// FailAbort stops the batch at the first failed item.
	FailAbort FailurePolicy = "abort"
	// FailSkip records the failure and moves on to the next item.
	FailSkip FailurePolicy = "skip"
)

// Timing holds every bound and delay the script uses.
type Timing struct {
	ElementTimeout   time.Duration
	PollInterval     time.Duration
	ImageIterations  int
	DetailIterations int
	SettleDelay      time.Duration
}

// DefaultTiming returns the timing tuned for the supported host page.
func DefaultTiming() Timing {
	return Timing{
		ElementTimeout:   5 * time.Second,
		PollInterval:     time.Second,
		ImageIterations:  60,
		DetailIterations: 60,
		SettleDelay:      500 * time.Millisecond,
	}
}

// RunState is the observable state of a Runner.
type RunState struct {
	IsRunning       bool
	CancelRequested bool
}

// Observer receives progress callbacks from a running batch. Callbacks run on
// the batch goroutine.
type Observer interface {
	ItemStarted(index, total int, item task.Item)
	StepStarted(index int, step string)
	ImageSaved(index int, item task.Item, path string)
	ImageFailed(index int, item task.Item, filename string)
	ItemFinished(index, total int, item task.Item, err error)
	RunFinished(processed int, err error)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) ItemStarted(int, int, task.Item)         {}
func (NopObserver) StepStarted(int, string)                 {}
func (NopObserver) ImageSaved(int, task.Item, string)       {}
func (NopObserver) ImageFailed(int, task.Item, string)      {}
func (NopObserver) ItemFinished(int, int, task.Item, error) {}
func (NopObserver) RunFinished(int, error)                  {}

// Observers fans every callback out to each observer in order.
type Observers []Observer

func (obs Observers) ItemStarted(index, total int, item task.Item) {
	for _, o := range obs {
		o.ItemStarted(index, total, item)
	}
}

func (obs Observers) StepStarted(index int, step string) {
	for _, o := range obs {
		o.StepStarted(index, step)
	}
}

func (obs Observers) ImageSaved(index int, item task.Item, path string) {
	for _, o := range obs {
		o.ImageSaved(index, item, path)
	}
}

func (obs Observers) ImageFailed(index int, item task.Item, filename string) {
	for _, o := range obs {
		o.ImageFailed(index, item, filename)
	}
}

func (obs Observers) ItemFinished(index, total int, item task.Item, err error) {
	for _, o := range obs {
		o.ItemFinished(index, total, item, err)
	}
}

func (obs Observers) RunFinished(processed int, err error) {
	for _, o := range obs {
		o.RunFinished(processed, err)
	}
}

// Runner executes the per-item script for every item of a form, one at a
// time. Start runs on the caller's goroutine; Stop and State may be called
// from anywhere.
type Runner struct {
	doc      hostpage.Document
	download Downloader
	log      logger.Logger
	input    *InputWriter
	observer Observer
	now      func() time.Time

	mu        sync.Mutex
	state     RunState
	selectors hostpage.Selectors
	timing    Timing
	policy    FailurePolicy
}

// Option configures a Runner.
type Option func(*Runner)

// WithSelectors overrides the default host page selectors.
func WithSelectors(s hostpage.Selectors) Option {
	return func(r *Runner) { r.selectors = s }
}

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(r *Runner) { r.timing = t }
}

// WithFailurePolicy sets the policy applied to failed items.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithObserver registers the progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithInputWriter replaces the default input writer.
func WithInputWriter(w *InputWriter) Option {
	return func(r *Runner) { r.input = w }
}

// WithClock sets the clock used for filenames.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates an idle runner driving doc.
func NewRunner(doc hostpage.Document, download Downloader, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		doc:       doc,
		download:  download,
		log:       log,
		observer:  NopObserver{},
		now:       time.Now,
		selectors: hostpage.DefaultSelectors(),
		timing:    DefaultTiming(),
		policy:    FailAbort,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.input == nil {
		r.input = NewInputWriter(doc, log)
	}
	return r
}

// State returns a snapshot of the run state.
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stop asks a running batch not to start another item. The item in flight
// runs to completion. Stop has no effect on an idle runner.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsRunning {
		r.state.CancelRequested = true
	}
}

// SetSelectors replaces the selectors. A running batch picks them up at the
// next item.
func (r *Runner) SetSelectors(s hostpage.Selectors) {
	r.mu.Lock()
	r.selectors = s
	r.mu.Unlock()
}

// SetTiming replaces the timing. A running batch picks it up at the next item.
func (r *Runner) SetTiming(t Timing) {
	r.mu.Lock()
	r.timing = t
	r.mu.Unlock()
}

// Start processes every item of form in order. It returns nil at once if a
// batch is already running. Under FailAbort the first item error ends the
// batch and is returned as an *ItemError; under FailSkip every item error is
// returned joined after the last item. Cancelling ctx aborts the step in
// flight.
func (r *Runner) Start(ctx context.Context, form task.Form) (err error) {
	r.mu.Lock()
	if r.state.IsRunning {
		r.mu.Unlock()
		r.log.Debug("Start ignored, batch already running")
		return nil
	}
	r.state = RunState{IsRunning: true}
	policy := r.policy
	r.mu.Unlock()

	items := make([]task.Item, len(form.Items))
	copy(items, form.Items)

	processed := 0
	defer func() {
		r.mu.Lock()
		r.state = RunState{}
		r.mu.Unlock()
		r.observer.RunFinished(processed, err)
	}()

	start := time.Now()
	r.log.Info("Batch started", logger.F("items", len(items)), logger.F("policy", string(policy)))

	var skipped []error
	for i, item := range items {
		if r.cancelRequested() {
			r.log.Info("Batch stopped before item", logger.F("index", i), logger.F("remaining", len(items)-i))
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.observer.ItemStarted(i, len(items), item)
		itemErr := r.runItem(ctx, form.CommonPrefix, i, item)
		processed++
		r.observer.ItemFinished(i, len(items), item, itemErr)
		if itemErr == nil {
			continue
		}

		ierr := &ItemError{Index: i, Description: item.Description(), Err: itemErr}
		if policy == FailSkip && ctx.Err() == nil {
			r.log.Warn("Item failed, skipping", logger.F("index", i), logger.F("error", itemErr))
			skipped = append(skipped, ierr)
			continue
		}
		r.log.Error("Item failed, aborting batch", logger.F("index", i), logger.F("error", itemErr))
		return ierr
	}

	r.log.Info("Batch finished",
		logger.F("processed", processed),
		logger.F("failed", len(skipped)),
		logger.F("duration", time.Since(start)),
	)
	return errors.Join(skipped...)
}

func (r *Runner) cancelRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.CancelRequested
}

func (r *Runner) snapshot() (hostpage.Selectors, Timing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectors, r.timing
}

// runItem runs the script for one item. Steps are separated by the settle
// delay; the first failing step ends the item.
func (r *Runner) runItem(ctx context.Context, prefix string, index int, item task.Item) error {
	sel, timing := r.snapshot()
	run := &itemRun{
		runner: r,
		waiter: NewWaiter(r.doc, timing.PollInterval, r.log),
		sel:    sel,
		timing: timing,
		prefix: prefix,
		index:  index,
		item:   item,
		log:    r.log.WithFields(logger.F("item", index), logger.F("description", item.Description())),
	}

	steps := itemScript()
	for n, step := range steps {
		if n > 0 {
			if err := sleep(ctx, timing.SettleDelay); err != nil {
				return err
			}
		}
		r.observer.StepStarted(index, step.Name)
		stepStart := time.Now()
		if err := step.Run(run, ctx); err != nil {
			run.log.Debug("Step failed",
				logger.F("step", step.Name),
				logger.F("duration", time.Since(stepStart)),
				logger.F("error", err),
			)
			return err
		}
		run.log.Debug("Step complete", logger.F("step", step.Name), logger.F("duration", time.Since(stepStart)))
	}
	return nil
}
