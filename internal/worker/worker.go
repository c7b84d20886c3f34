// Package worker runs periodic maintenance tasks in the background.
//
// Tasks are registered before Start and executed on their own interval
// until Stop. A panicking task is logged and rescheduled rather than
// taking the process down.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one recurring maintenance job.
type Task interface {
	// Name identifies the task in logs.
	Name() string

	// Interval is the delay between runs.
	Interval() time.Duration

	// Run executes the task once.
	Run(ctx context.Context) error
}

// Worker schedules registered tasks.
type Worker struct {
	tasks  []Task
	logger *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a Worker. Register tasks before calling Start.
func New(logger *slog.Logger) *Worker {
	return &Worker{
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Register adds a task to the schedule. Call before Start.
func (w *Worker) Register(task Task) {
	w.tasks = append(w.tasks, task)
	w.logger.Debug("registered maintenance task",
		"task", task.Name(), "interval", task.Interval())
}

// Start launches one goroutine per task. Each task runs once
// immediately, then on its interval.
func (w *Worker) Start(ctx context.Context) {
	for _, task := range w.tasks {
		w.wg.Add(1)
		go w.loop(ctx, task)
	}
	w.logger.Info("maintenance worker started", "tasks", len(w.tasks))
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("maintenance worker stopped")
}

func (w *Worker) loop(ctx context.Context, task Task) {
	defer w.wg.Done()

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	w.runOnce(ctx, task)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, task)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("maintenance task panicked", "task", task.Name(), "panic", r)
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		w.logger.Warn("maintenance task failed",
			"task", task.Name(), "duration", time.Since(start), "error", err)
		return
	}
	w.logger.Debug("maintenance task completed",
		"task", task.Name(), "duration", time.Since(start))
}
