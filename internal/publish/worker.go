package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StepFunc is one cooperative unit of work. now is the tick time.
type StepFunc func(ctx context.Context, now time.Time)

// Worker runs a step on a fixed period until its context is cancelled.
type Worker struct {
	name     string
	interval time.Duration
	step     StepFunc
	onPanic  func(error)
	logger   *slog.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWorker creates a stopped worker. Panics inside step are recovered and
// handed to onPanic.
func NewWorker(name string, interval time.Duration, step StepFunc, onPanic func(error), logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		name:     name,
		interval: interval,
		step:     step,
		onPanic:  onPanic,
		logger:   logger,
	}
}

// IsRunning returns whether the worker goroutine is alive.
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// Start launches the worker goroutine. Starting a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	done := w.done
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.mu.Unlock()
			close(done)
		}()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				w.runStep(ctx, now)
			}
		}
	}()
}

func (w *Worker) runStep(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s worker: %v", w.name, r)
			w.logger.Error("worker step panicked", "worker", w.name, "error", err)
			if w.onPanic != nil {
				w.onPanic(err)
			}
		}
	}()
	w.step(ctx, now)
}

// Stop cancels the worker and waits up to grace for it to finish. A worker
// still busy after grace is left to exit on its own; Stop reports false.
func (w *Worker) Stop(grace time.Duration) bool {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return true
	}
	cancel()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		w.logger.Warn("worker did not stop in time, detaching", "worker", w.name, "grace", grace)
		return false
	}
}
