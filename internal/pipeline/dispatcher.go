package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/store"
)

// Dispatcher executes submitted runs one at a time in submission order.
type Dispatcher struct {
	pipeline *Pipeline
	queue    *jobQueue
}

// NewDispatcher returns a dispatcher over p. Call Run to start the worker.
func NewDispatcher(p *Pipeline) *Dispatcher {
	return &Dispatcher{pipeline: p, queue: newJobQueue()}
}

// Submit resolves override into a config, records a queued run, and
// enqueues it. Configuration errors are returned before anything is stored.
// Submitting a config that maps to an existing run id returns that id
// without queuing it again.
func (d *Dispatcher) Submit(ctx context.Context, override map[string]any) (string, error) {
	cfg, err := config.Resolve(override)
	if err != nil {
		return "", err
	}
	id, err := d.pipeline.Store.Create(ctx, cfg)
	if errors.Is(err, store.ErrRunExists) {
		slog.Info("run already submitted", "run_id", id)
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	if !d.queue.Enqueue(job{ID: id, Config: cfg}) {
		if ferr := d.pipeline.Store.Fail(ctx, id, "dispatcher stopped"); ferr != nil {
			slog.Warn("record failure", "run_id", id, "error", ferr)
		}
		return id, errors.New("dispatcher stopped")
	}
	return id, nil
}

// Pending returns the number of queued runs.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Run executes queued runs until ctx is cancelled or the dispatcher is
// closed and drained. Run failures are recorded on the run and logged.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Debug("dispatcher starting")

	for {
		if j, ok := d.queue.TryDequeue(); ok {
			d.process(ctx, j)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("dispatcher stopping: context cancelled")
			d.queue.Close()
			d.abandon(ctx)
			return ctx.Err()

		case <-d.queue.Wait():
			// The signal channel is closed with the queue, so this case
			// fires immediately once closed.
			if d.queue.isDrained() {
				slog.Debug("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Close stops accepting submissions. Run returns after draining the queue.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	if err := ctx.Err(); err != nil {
		d.failQueued(ctx, j, err)
		return
	}
	if err := d.pipeline.Store.MarkStarted(ctx, j.ID); err != nil {
		slog.Error("cannot start run", "run_id", j.ID, "error", err)
		return
	}
	// Errors are already recorded on the run.
	_ = d.pipeline.Execute(ctx, j.ID, j.Config)
}

// abandon fails every run still queued after cancellation.
func (d *Dispatcher) abandon(ctx context.Context) {
	for {
		j, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		d.failQueued(ctx, j, ctx.Err())
	}
}

func (d *Dispatcher) failQueued(ctx context.Context, j job, cause error) {
	msg := fmt.Sprintf("cancelled before start: %v", cause)
	if err := d.pipeline.Store.Fail(context.WithoutCancel(ctx), j.ID, msg); err != nil {
		slog.Error("record failure", "run_id", j.ID, "error", err)
	}
}
